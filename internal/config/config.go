// Package config defines the run configuration for the XML staging loader
// and validates it before any file is touched.
//
// The configuration is a single JSON document with three sections:
//
//	namespaces: XPath prefix -> namespace URI
//	database:   target store selection and connection parameters
//	tables:     ordered list of table specs (name, record xpath, common fields)
//
// A Config is immutable once loaded and is shared read-only across the run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Config is the top-level run configuration.
type Config struct {
	Namespaces map[string]string `json:"namespaces"`
	Database   Database          `json:"database"`
	Tables     []TableSpec       `json:"tables"`
}

// Database selects a storage backend and how to reach it.
//
// Either DSN is provided verbatim, or (for SQL Server) it is composed from
// Server/Name/Trusted via DSN().
type Database struct {
	// Kind is the backend kind: "mssql" | "postgres" | "sqlite".
	Kind string `json:"kind"`

	// RawDSN, when set, is passed to the backend as-is. Environment
	// variables in the form $VAR or ${VAR} are expanded.
	RawDSN string `json:"dsn,omitempty"`

	// Server, Name and Trusted compose an ADO-style SQL Server connection
	// string when RawDSN is empty. Trusted selects integrated auth.
	Server  string `json:"server,omitempty"`
	Name    string `json:"name,omitempty"`
	Trusted bool   `json:"trusted,omitempty"`
}

// TableSpec describes one staging table: which elements become rows and which
// single-valued lookups become constant columns.
type TableSpec struct {
	Name string `json:"name"`

	// XPath selects the repeating record elements, e.g. "//ns:Order".
	XPath string `json:"xpath"`

	// CommonFields maps output column name -> XPath resolved once per
	// document. Values are constant across all rows of that document.
	CommonFields map[string]string `json:"common_fields,omitempty"`
}

// Load reads and decodes a JSON config file.
//
// Decoding is strict about JSON syntax but not about unknown keys; validation
// of content happens separately in Validate.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var c Config
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &c, nil
}

// DSN returns the connection string for the configured backend.
//
// When RawDSN is set it wins, after environment expansion. Otherwise an
// ADO-style SQL Server string is composed from the discrete parameters.
func (d Database) DSN() string {
	if strings.TrimSpace(d.RawDSN) != "" {
		return os.ExpandEnv(d.RawDSN)
	}

	var b strings.Builder
	b.WriteString("server=")
	b.WriteString(d.Server)
	if d.Name != "" {
		b.WriteString(";database=")
		b.WriteString(d.Name)
	}
	if d.Trusted {
		b.WriteString(";trusted_connection=yes")
	}
	return b.String()
}
