package store

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// UpsertSpec describes one idempotent upsert: the target table, the natural
// key that decides update-vs-insert, and the full row. Cols[0] must be the
// synthesized primary key column. All eight reconcilers funnel through this
// one primitive; none carry their own check-then-branch logic.
type UpsertSpec struct {
	Table   string
	KeyCols []string
	KeyVals []any
	Cols    []string
	Vals    []any
}

func (s UpsertSpec) validate() error {
	switch {
	case s.Table == "":
		return eris.New("upsert: no table specified")
	case len(s.KeyCols) == 0:
		return eris.Errorf("upsert %s: no natural key specified", s.Table)
	case len(s.KeyCols) != len(s.KeyVals):
		return eris.Errorf("upsert %s: key columns/values mismatch", s.Table)
	case len(s.Cols) < 2:
		return eris.Errorf("upsert %s: row needs a primary key and at least one column", s.Table)
	case len(s.Cols) != len(s.Vals):
		return eris.Errorf("upsert %s: row columns/values mismatch", s.Table)
	}
	return nil
}

// dialect selects the SQL placeholder style.
type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) placeholder(n int) string {
	if d == dialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// buildKeyLookup returns the SELECT that resolves the natural key to an
// existing primary key, if any.
func buildKeyLookup(d dialect, s UpsertSpec) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE ", s.Cols[0], s.Table)
	for i, col := range s.KeyCols {
		if i > 0 {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "%s = %s", col, d.placeholder(i+1))
	}
	return b.String(), s.KeyVals
}

// buildUpdate returns the UPDATE for the mutable columns of an existing row.
// The primary key and the natural key columns are immutable by construction
// and excluded from the SET list.
func buildUpdate(d dialect, s UpsertSpec, existingID any) (string, []any) {
	keySet := make(map[string]bool, len(s.KeyCols)+1)
	keySet[s.Cols[0]] = true
	for _, k := range s.KeyCols {
		keySet[k] = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET ", s.Table)
	args := make([]any, 0, len(s.Vals))
	for i, col := range s.Cols {
		if keySet[col] {
			continue
		}
		if len(args) > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = %s", col, d.placeholder(len(args)+1))
		args = append(args, s.Vals[i])
	}
	fmt.Fprintf(&b, " WHERE %s = %s", s.Cols[0], d.placeholder(len(args)+1))
	args = append(args, existingID)
	return b.String(), args
}

// buildInsert returns the INSERT for the full row.
func buildInsert(d dialect, s UpsertSpec) (string, []any) {
	marks := make([]string, len(s.Cols))
	for i := range s.Cols {
		marks[i] = d.placeholder(i + 1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.Table, strings.Join(s.Cols, ", "), strings.Join(marks, ", "))
	return sql, s.Vals
}
