// Package config loads pipeline configuration from a YAML file and the
// environment. Environment variables (prefix EINVOICE_) override the file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/firs"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/logging"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/mapping"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/source"
)

// Config is the full application configuration.
type Config struct {
	Log      logging.Config `mapstructure:"log"`
	Supplier SupplierConfig `mapstructure:"supplier"`
	API      APIConfig      `mapstructure:"api"`
	Source   SourceConfig   `mapstructure:"source"`
	Mappings MappingsConfig `mapstructure:"mappings"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Server   ServerConfig   `mapstructure:"server"`
}

// SupplierConfig identifies the business issuing the invoices. Stamped on
// every submitted document.
type SupplierConfig struct {
	Name                string `mapstructure:"name"`
	TIN                 string `mapstructure:"tin"`
	Email               string `mapstructure:"email"`
	Telephone           string `mapstructure:"telephone"`
	BusinessDescription string `mapstructure:"business_description"`
	StreetName          string `mapstructure:"street_name"`
	CityName            string `mapstructure:"city_name"`
	PostalZone          string `mapstructure:"postal_zone"`
	Country             string `mapstructure:"country"`
}

// Party builds the supplier party stamped on outgoing documents, or nil when
// no supplier is configured.
func (s SupplierConfig) Party() *firs.Party {
	if s.Name == "" && s.TIN == "" {
		return nil
	}
	return &firs.Party{
		PartyName:           s.Name,
		TIN:                 s.TIN,
		Email:               s.Email,
		Telephone:           s.Telephone,
		BusinessDescription: s.BusinessDescription,
		PostalAddress: firs.PostalAddress{
			StreetName: s.StreetName,
			CityName:   s.CityName,
			PostalZone: s.PostalZone,
			Country:    s.Country,
		},
	}
}

// APIConfig configures the FIRS access point client.
type APIConfig struct {
	// Environment: "preprod" or "production".
	Environment   string `mapstructure:"environment"`
	ParticipantID string `mapstructure:"participant_id"`
	APIKey        string `mapstructure:"api_key"`
	// MaxAttempts per submission, counting the first try.
	MaxAttempts int `mapstructure:"max_attempts"`
	// BackoffBaseMS is the first retry delay in milliseconds; doubles per retry.
	BackoffBaseMS int `mapstructure:"backoff_base_ms"`
}

// BaseURL maps the environment name to the access point endpoint.
func (a APIConfig) BaseURL() string {
	if a.Environment == "production" {
		return firs.ProductionBaseURL
	}
	return firs.PreprodBaseURL
}

// SourceConfig selects and configures the Sage 50 reader.
type SourceConfig struct {
	// Kind: "csv", "xlsx" or "db".
	Kind string `mapstructure:"kind"`
	// Path to the export file for csv and xlsx sources.
	Path string `mapstructure:"path"`
	// Sheet name for xlsx sources; empty means the first sheet.
	Sheet   string           `mapstructure:"sheet"`
	Columns source.ColumnMap `mapstructure:"columns"`
	// Driver and DSN for the db source, e.g. an ODBC bridge to the Sage
	// company file.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// SalesJournalKey filters journal headers to sales invoices.
	SalesJournalKey int `mapstructure:"sales_journal_key"`
}

// MappingsConfig locates the operator-maintained lookup tables.
type MappingsConfig struct {
	CustomerTIN string `mapstructure:"customer_tin"`
	HSCode      string `mapstructure:"hs_code"`
	Category    string `mapstructure:"category"`
}

// Paths converts to the mapping loader's path set.
func (m MappingsConfig) Paths() mapping.Paths {
	return mapping.Paths{
		CustomerTIN: m.CustomerTIN,
		HSCode:      m.HSCode,
		Category:    m.Category,
	}
}

// LedgerConfig selects the submission ledger backend.
type LedgerConfig struct {
	// Backend: "file" or "postgres".
	Backend string `mapstructure:"backend"`
	// Path of the ledger CSV for the file backend.
	Path string `mapstructure:"path"`
	// DatabaseURL for the postgres backend.
	DatabaseURL string `mapstructure:"database_url"`
}

// DefaultsConfig fixes the constants stamped on documents when the source
// leaves them blank.
type DefaultsConfig struct {
	Currency      string `mapstructure:"currency"`
	TaxRate       string `mapstructure:"tax_rate"`
	UOM           string `mapstructure:"uom"`
	TaxCategoryID string `mapstructure:"tax_category_id"`
}

// ServerConfig configures the read-only status API.
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Debug   bool   `mapstructure:"debug"`
}

// Load reads configuration from the given file (empty means ./einvoice.yaml
// if present) with EINVOICE_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("EINVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("einvoice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields every command depends on. Command-specific
// requirements (API credentials for submission, DSN for the db source) are
// checked where they are used.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "csv", "xlsx", "db":
	default:
		return fmt.Errorf("source.kind must be csv, xlsx or db, got %q", c.Source.Kind)
	}
	if (c.Source.Kind == "csv" || c.Source.Kind == "xlsx") && c.Source.Path == "" {
		return fmt.Errorf("source.path is required for the %s source", c.Source.Kind)
	}
	if c.Source.Kind == "db" && (c.Source.Driver == "" || c.Source.DSN == "") {
		return fmt.Errorf("source.driver and source.dsn are required for the db source")
	}
	if err := c.Source.Columns.Validate(); err != nil {
		return err
	}

	switch c.API.Environment {
	case "preprod", "production":
	default:
		return fmt.Errorf("api.environment must be preprod or production, got %q", c.API.Environment)
	}

	switch c.Ledger.Backend {
	case "file":
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger.path is required for the file backend")
		}
	case "postgres":
		if c.Ledger.DatabaseURL == "" {
			return fmt.Errorf("ledger.database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("ledger.backend must be file or postgres, got %q", c.Ledger.Backend)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("api.environment", "preprod")
	v.SetDefault("api.max_attempts", 4)
	v.SetDefault("api.backoff_base_ms", 500)

	v.SetDefault("source.kind", "csv")
	v.SetDefault("source.sales_journal_key", 3)
	cols := source.DefaultColumnMap()
	v.SetDefault("source.columns.invoice_number", cols.InvoiceNumber)
	v.SetDefault("source.columns.invoice_date", cols.InvoiceDate)
	v.SetDefault("source.columns.customer_id", cols.CustomerID)
	v.SetDefault("source.columns.customer_name", cols.CustomerName)
	v.SetDefault("source.columns.item_code", cols.ItemCode)
	v.SetDefault("source.columns.item_description", cols.ItemDescription)
	v.SetDefault("source.columns.quantity", cols.Quantity)
	v.SetDefault("source.columns.unit_price", cols.UnitPrice)
	v.SetDefault("source.columns.discount", cols.Discount)
	v.SetDefault("source.columns.tax_rate", cols.TaxRate)
	v.SetDefault("source.columns.line_total", cols.LineTotal)

	v.SetDefault("mappings.customer_tin", "mappings/customer_tin.csv")
	v.SetDefault("mappings.hs_code", "mappings/hs_code.csv")
	v.SetDefault("mappings.category", "mappings/category.csv")

	v.SetDefault("ledger.backend", "file")
	v.SetDefault("ledger.path", "ledger/submission_log.csv")

	v.SetDefault("defaults.currency", "NGN")
	v.SetDefault("defaults.tax_rate", "7.5")
	v.SetDefault("defaults.uom", "ST")
	v.SetDefault("defaults.tax_category_id", "STANDARD_VAT")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.debug", false)
}
