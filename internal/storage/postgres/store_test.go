package postgres

import (
	"reflect"
	"testing"
)

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	rows := [][]any{
		{"a1", nil},
		{"a2", "b2"},
	}
	q, args := buildInsertSQL("public.orders", []string{"item", "invoice"}, rows)

	wantQ := `INSERT INTO "public"."orders" ("item", "invoice") VALUES ($1, $2), ($3, $4)`
	if q != wantQ {
		t.Errorf("query:\n got %s\nwant %s", q, wantQ)
	}

	wantArgs := []any{"a1", nil, "a2", "b2"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %v, want %v", args, wantArgs)
	}
}

func TestIdentQuoting(t *testing.T) {
	t.Parallel()

	if got := pgIdent(`we"ird`); got != `"we""ird"` {
		t.Errorf("pgIdent = %s", got)
	}
	if got := pgTableIdent("public.orders"); got != `"public"."orders"` {
		t.Errorf("pgTableIdent = %s", got)
	}
	if got := pgTableIdent("orders"); got != `"orders"` {
		t.Errorf("pgTableIdent = %s", got)
	}

	// Mixed-case names must reach to_regclass in their quoted form, or the
	// lookup folds to lower case and never sees the created table.
	if got := pgTableIdent("Orders"); got != `"Orders"` {
		t.Errorf("pgTableIdent = %s, want case preserved", got)
	}
	if got := pgTableIdent("public.Orders"); got != `"public"."Orders"` {
		t.Errorf("pgTableIdent = %s, want case preserved", got)
	}
}

func TestSplitTableName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, schema, name string
	}{
		{"orders", "", "orders"},
		{"public.orders", "public", "orders"},
	}
	for _, tc := range cases {
		schema, name := splitTableName(tc.in)
		if schema != tc.schema || name != tc.name {
			t.Errorf("splitTableName(%q) = (%q, %q), want (%q, %q)",
				tc.in, schema, name, tc.schema, tc.name)
		}
	}
}
