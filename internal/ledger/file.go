package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/money"
)

var fileHeader = []string{
	"timestamp", "invoice_number", "status", "irn", "qr_payload",
	"customer", "amount", "error", "ambiguous",
}

// FileStore keeps the ledger in an append-only CSV file. Every Record
// appends an audit row; the current state per invoice is the last row, with
// submitted sticky. Good for the single-operator setup; concurrent runs are
// excluded by a lock file.
type FileStore struct {
	path string

	mu      sync.Mutex
	entries map[string]*Entry
}

// OpenFileStore loads (or creates) the ledger file at path.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, entries: make(map[string]*Entry)}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		entry, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrCorrupt, i+1, err)
		}
		s.apply(entry)
	}
	return s, nil
}

// Lookup returns the current entry for an invoice number.
func (s *FileStore) Lookup(ctx context.Context, invoiceNumber string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[invoiceNumber]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

// List returns entries filtered by status, newest first.
func (s *FileStore) List(ctx context.Context, status Status) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		if status != "" && entry.Status != status {
			continue
		}
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].InvoiceNumber < out[j].InvoiceNumber
	})
	return out, nil
}

// Record appends an audit row and updates the snapshot. A submitted entry is
// never downgraded.
func (s *FileStore) Record(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[entry.InvoiceNumber]; ok &&
		existing.Status == StatusSubmitted && entry.Status != StatusSubmitted {
		return nil
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}

	if err := s.append(entry); err != nil {
		return err
	}
	s.apply(entry)
	return nil
}

// Close implements Store; the file is only held open during writes.
func (s *FileStore) Close() error {
	return nil
}

// LockRun takes a lock file next to the ledger. The lock lives for the whole
// run, so two processes can never interleave lookup and record.
func (s *FileStore) LockRun(ctx context.Context) (func(), error) {
	lockPath := s.path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w (lock file %s)", ErrLocked, lockPath)
		}
		return nil, fmt.Errorf("acquire ledger lock: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	return func() { os.Remove(lockPath) }, nil
}

func (s *FileStore) apply(entry Entry) {
	if existing, ok := s.entries[entry.InvoiceNumber]; ok &&
		existing.Status == StatusSubmitted && entry.Status != StatusSubmitted {
		return
	}
	copied := entry
	s.entries[entry.InvoiceNumber] = &copied
}

func (s *FileStore) append(entry Entry) error {
	newFile := false
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		newFile = true
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger for append: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if newFile {
		if err := cw.Write(fileHeader); err != nil {
			return err
		}
	}
	row := []string{
		entry.UpdatedAt.Format(time.RFC3339),
		entry.InvoiceNumber,
		string(entry.Status),
		entry.IRN,
		entry.QRPayload,
		entry.CustomerName,
		entry.Amount.String(),
		entry.LastError,
		strconv.FormatBool(entry.Ambiguous),
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Sync()
}

func parseRow(row []string) (Entry, error) {
	if len(row) < len(fileHeader) {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", len(fileHeader), len(row))
	}

	updatedAt, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return Entry{}, fmt.Errorf("bad timestamp %q", row[0])
	}

	status := Status(row[2])
	switch status {
	case StatusPending, StatusSubmitted, StatusFailed:
	default:
		return Entry{}, fmt.Errorf("unknown status %q", row[2])
	}

	amount, err := money.FromString(row[6])
	if err != nil {
		return Entry{}, fmt.Errorf("bad amount %q", row[6])
	}

	ambiguous, err := strconv.ParseBool(row[8])
	if err != nil {
		return Entry{}, fmt.Errorf("bad ambiguous flag %q", row[8])
	}

	return Entry{
		UpdatedAt:     updatedAt,
		InvoiceNumber: row[1],
		Status:        status,
		IRN:           row[3],
		QRPayload:     row[4],
		CustomerName:  row[5],
		Amount:        amount,
		LastError:     row[7],
		Ambiguous:     ambiguous,
	}, nil
}
