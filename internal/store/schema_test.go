// ABOUTME: Tests for explicit table definitions
// ABOUTME: Covers validation rules and rendered CREATE statements

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notesTable() Table {
	return Table{
		Name: "notes",
		Columns: []Column{
			{Name: "id", Type: ColumnInteger, PrimaryKey: true, AutoIncrement: true},
			{Name: "body", Type: ColumnText, NotNull: true, Collate: "BINARY"},
			{Name: "weight", Type: ColumnReal},
		},
		Indexes: []Index{
			{Name: "idx_notes_body", Columns: []string{"body"}},
		},
	}
}

func TestTable_ValidateAcceptsWellFormed(t *testing.T) {
	require.NoError(t, notesTable().Validate())
}

func TestTable_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Table)
		errMsg string
	}{
		{
			name:   "missing name",
			mutate: func(tb *Table) { tb.Name = "" },
			errMsg: "table name is required",
		},
		{
			name:   "no columns",
			mutate: func(tb *Table) { tb.Columns = nil; tb.Indexes = nil },
			errMsg: "at least one column",
		},
		{
			name: "duplicate column",
			mutate: func(tb *Table) {
				tb.Columns = append(tb.Columns, Column{Name: "body", Type: ColumnText})
			},
			errMsg: "duplicate column body",
		},
		{
			name:   "unsupported type",
			mutate: func(tb *Table) { tb.Columns[2].Type = "DECIMAL" },
			errMsg: "unsupported type",
		},
		{
			name:   "no primary key",
			mutate: func(tb *Table) { tb.Columns[0].PrimaryKey = false; tb.Columns[0].AutoIncrement = false },
			errMsg: "exactly one primary key",
		},
		{
			name:   "two primary keys",
			mutate: func(tb *Table) { tb.Columns[1].PrimaryKey = true },
			errMsg: "exactly one primary key",
		},
		{
			name:   "autoincrement on text",
			mutate: func(tb *Table) { tb.Columns[1].AutoIncrement = true },
			errMsg: "must be an INTEGER primary key",
		},
		{
			name:   "index on unknown column",
			mutate: func(tb *Table) { tb.Indexes[0].Columns = []string{"missing"} },
			errMsg: "unknown column missing",
		},
		{
			name:   "index without columns",
			mutate: func(tb *Table) { tb.Indexes[0].Columns = nil },
			errMsg: "index needs a name and columns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := notesTable()
			tb.Columns = append([]Column(nil), tb.Columns...)
			tb.Indexes = append([]Index(nil), tb.Indexes...)
			tt.mutate(&tb)

			err := tb.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestTable_CreateSQL(t *testing.T) {
	stmts := notesTable().CreateSQL()
	require.Len(t, stmts, 2)

	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS notes")
	assert.Contains(t, stmts[0], "id INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.Contains(t, stmts[0], "body TEXT NOT NULL COLLATE BINARY")
	assert.Contains(t, stmts[0], "weight REAL")
	assert.Equal(t, "CREATE INDEX IF NOT EXISTS idx_notes_body ON notes(body)", stmts[1])
}

func TestTable_CreateSQLUniqueIndex(t *testing.T) {
	tb := notesTable()
	tb.Indexes = []Index{{Name: "idx_notes_body", Columns: []string{"body", "weight"}, Unique: true}}

	stmts := tb.CreateSQL()
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_body ON notes(body, weight)", stmts[1])
}

func TestTable_Accessors(t *testing.T) {
	tb := notesTable()
	assert.Equal(t, "id", tb.PrimaryKey())
	assert.Equal(t, []string{"id", "body", "weight"}, tb.ColumnNames())
}
