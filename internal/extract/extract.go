// Package extract flattens repeating XML elements into flat text rows and
// merges in per-document constant fields.
//
// The flattening is deliberately lossy: each matched record element is walked
// in document order and every element carrying its own non-empty text writes
// row[localName] = text, overwriting any earlier element with the same local
// name in that record. Repeated tags therefore collapse to the last value
// seen. Namespace prefixes are stripped; only local names become columns.
package extract

import (
	"github.com/antchfx/xmlquery"

	"xmlstage/internal/xmldoc"
)

// NullValue is the literal text stored for a common field whose path resolves
// to no element or to empty text. It is stored as text, distinct from the SQL
// NULL used for row columns that are absent from a given row.
const NullValue = "NULL"

// Row is one flattened record: local tag name -> trimmed text.
type Row map[string]string

// Result is the tabular outcome of extracting one (file, table-config) pair.
//
// Its column set is the union of all row keys plus all common-field keys;
// rows lacking a column observe SQL NULL at load time.
type Result struct {
	Rows   []Row
	Common map[string]string
}

// CommonFields resolves each (name, path) lookup against doc and returns the
// first match's trimmed text per name, or NullValue when nothing matches or
// the matched element has no own text.
//
// The result is recomputed fresh per (file, table-config); callers must not
// cache it across files.
func CommonFields(doc *xmlquery.Node, paths map[string]string, ns map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for name, path := range paths {
		e, err := xmldoc.Compile(path, ns)
		if err != nil {
			return nil, err
		}
		out[name] = NullValue
		if n := xmldoc.FindOne(doc, e); n != nil {
			if text := xmldoc.OwnText(n); text != "" {
				out[name] = text
			}
		}
	}
	return out, nil
}

// FlattenRecords evaluates recordPath against doc and flattens each matched
// element into one Row.
//
// Zero matches is the "no data" outcome: an empty slice with a nil error,
// distinguishable from a bad expression (non-nil error). Rows that end up
// with no populated keys are dropped. Output preserves document order of the
// matched elements.
func FlattenRecords(doc *xmlquery.Node, recordPath string, ns map[string]string) ([]Row, error) {
	e, err := xmldoc.Compile(recordPath, ns)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for _, rec := range xmldoc.FindAll(doc, e) {
		row := flattenOne(rec)
		if len(row) == 0 {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// flattenOne walks rec and its whole subtree in preorder and collects
// tag -> text with last-write-wins semantics.
func flattenOne(rec *xmlquery.Node) Row {
	row := Row{}
	xmldoc.WalkElements(rec, func(n *xmlquery.Node) {
		if text := xmldoc.OwnText(n); text != "" {
			row[n.Data] = text
		}
	})
	return row
}

// Materialize combines flattened rows and common fields into a Result.
func Materialize(rows []Row, common map[string]string) Result {
	return Result{Rows: rows, Common: common}
}

// Columns returns the result's column set: the union of all row keys across
// all rows plus every common-field key, sorted for deterministic DDL and
// insert statements.
func (r Result) Columns() []string {
	set := map[string]struct{}{}
	for _, row := range r.Rows {
		for k := range row {
			set[k] = struct{}{}
		}
	}
	for k := range r.Common {
		set[k] = struct{}{}
	}
	return sortedKeys(set)
}

// ValueRows renders every row against the given column order as insert
// arguments. Common fields take precedence over row keys of the same name, so
// their columns really are constant across all rows; they are never nil
// (their empty form is the NullValue text). Row columns absent from a row
// become nil (SQL NULL).
func (r Result) ValueRows(columns []string) [][]any {
	out := make([][]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		vals := make([]any, len(columns))
		for i, c := range columns {
			if v, ok := r.Common[c]; ok {
				vals[i] = v
				continue
			}
			if v, ok := row[c]; ok {
				vals[i] = v
			}
			// else leave nil
		}
		out = append(out, vals)
	}
	return out
}
