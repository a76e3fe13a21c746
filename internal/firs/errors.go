package firs

import "fmt"

// SubmitErrorKind classifies a failed submission.
type SubmitErrorKind string

const (
	// KindRejected means the authority refused the document (4xx). Never
	// retried; the rejection reason is preserved verbatim for the ledger.
	KindRejected SubmitErrorKind = "rejected"
	// KindTransient means a network failure or 5xx. Retried with backoff up
	// to the attempt ceiling.
	KindTransient SubmitErrorKind = "transient"
)

// SubmitError reports why a submission did not yield an IRN.
//
// Ambiguous marks the timeout case where the request may have reached the
// server: the next run must verify against the authority before resubmitting.
type SubmitError struct {
	Kind       SubmitErrorKind
	StatusCode int
	Message    string
	Ambiguous  bool
	Cause      error
}

func (e *SubmitError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("submit %s [%d]: %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("submit %s: %s", e.Kind, e.Message)
}

func (e *SubmitError) Unwrap() error {
	return e.Cause
}

// IsRejected reports whether err is a SubmitError with kind rejected.
func IsRejected(err error) bool {
	se, ok := err.(*SubmitError)
	return ok && se.Kind == KindRejected
}

// IsAmbiguous reports whether err is a SubmitError whose outcome on the
// authority side is unknown.
func IsAmbiguous(err error) bool {
	se, ok := err.(*SubmitError)
	return ok && se.Ambiguous
}
