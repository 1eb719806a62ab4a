package config

import (
	"fmt"
	"strings"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding, addressed by a dotted config path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// Validate checks a loaded Config and returns all findings.
//
// Errors make the run unrunnable (the caller must abort before processing any
// file); warnings are advisory. An empty result means the config is clean.
func Validate(c *Config) []Issue {
	var issues []Issue

	errf := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, a...)})
	}
	warnf := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, a...)})
	}

	if c == nil {
		return []Issue{{SeverityError, "", "config is empty"}}
	}

	switch c.Database.Kind {
	case "mssql", "postgres", "sqlite":
	case "":
		errf("database.kind", "must be set (mssql, postgres or sqlite)")
	default:
		errf("database.kind", "unsupported kind %q", c.Database.Kind)
	}

	if strings.TrimSpace(c.Database.RawDSN) == "" {
		if c.Database.Kind == "mssql" {
			if strings.TrimSpace(c.Database.Server) == "" {
				errf("database.server", "required when no dsn is given")
			}
			if strings.TrimSpace(c.Database.Name) == "" {
				warnf("database.name", "no database name; server default will be used")
			}
		} else if c.Database.Kind != "" {
			errf("database.dsn", "required for kind %q", c.Database.Kind)
		}
	}

	if len(c.Tables) == 0 {
		errf("tables", "at least one table spec is required")
	}

	seen := map[string]bool{}
	for i, t := range c.Tables {
		path := fmt.Sprintf("tables[%d]", i)
		if strings.TrimSpace(t.Name) == "" {
			errf(path+".name", "table name is required")
		}
		if strings.TrimSpace(t.XPath) == "" {
			errf(path+".xpath", "record xpath is required")
		}
		if t.Name != "" && seen[t.Name] {
			warnf(path+".name", "table %q configured more than once; loads are cumulative", t.Name)
		}
		seen[t.Name] = true

		for name, p := range t.CommonFields {
			if strings.TrimSpace(name) == "" {
				errf(path+".common_fields", "common field with empty name")
			}
			if strings.TrimSpace(p) == "" {
				errf(path+".common_fields."+name, "empty xpath")
			}
			if pfx := undeclaredPrefix(p, c.Namespaces); pfx != "" {
				warnf(path+".common_fields."+name, "xpath uses undeclared namespace prefix %q", pfx)
			}
		}
		if t.XPath != "" {
			if pfx := undeclaredPrefix(t.XPath, c.Namespaces); pfx != "" {
				warnf(path+".xpath", "xpath uses undeclared namespace prefix %q", pfx)
			}
		}
	}

	return issues
}

// HasError reports whether any issue is severity error.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// undeclaredPrefix returns the first "pfx:" occurrence in expr whose prefix is
// not declared in ns, or "" when all prefixes resolve.
//
// This is a heuristic scan, not an XPath parse: it only needs to catch the
// common typo of forgetting a namespaces entry.
func undeclaredPrefix(expr string, ns map[string]string) string {
	rest := expr
	for {
		i := strings.IndexByte(rest, ':')
		if i < 0 {
			return ""
		}
		// Walk back over the prefix characters.
		j := i
		for j > 0 && isPrefixByte(rest[j-1]) {
			j--
		}
		pfx := rest[j:i]
		// "::" axis separators and empty prefixes are not namespace uses.
		if pfx != "" && !strings.HasPrefix(rest[i:], "::") {
			if _, ok := ns[pfx]; !ok {
				return pfx
			}
		}
		if strings.HasPrefix(rest[i:], "::") {
			rest = rest[i+2:]
		} else {
			rest = rest[i+1:]
		}
	}
}

func isPrefixByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9', b == '_', b == '-', b == '.':
		return true
	}
	return false
}
