// ABOUTME: Explicit table definitions handed to the engine instead of mapping annotations
// ABOUTME: Renders idempotent CREATE TABLE / CREATE INDEX statements for SQLite

package store

import (
	"errors"
	"fmt"
	"strings"
)

// ColumnType is a SQLite storage class.
type ColumnType string

// Column types supported by the engine.
const (
	ColumnInteger ColumnType = "INTEGER"
	ColumnReal    ColumnType = "REAL"
	ColumnText    ColumnType = "TEXT"
	ColumnBlob    ColumnType = "BLOB"
)

// Column describes one column of a table.
type Column struct {
	Name          string
	Type          ColumnType
	PrimaryKey    bool
	AutoIncrement bool   // only valid on an INTEGER primary key; ids are never reused
	NotNull       bool
	Collate       string // empty means BINARY
}

// Index describes a secondary index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table is the explicit schema of one table.
type Table struct {
	Name    string
	Columns []Column
	Indexes []Index
}

// Validate checks that the table can be rendered.
func (t Table) Validate() error {
	if t.Name == "" {
		return errors.New("table name is required")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: at least one column is required", t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	primaryKeys := 0
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %s: column name is required", t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %s", t.Name, c.Name)
		}
		seen[c.Name] = true

		switch c.Type {
		case ColumnInteger, ColumnReal, ColumnText, ColumnBlob:
		default:
			return fmt.Errorf("table %s: column %s has unsupported type %q", t.Name, c.Name, c.Type)
		}

		if c.PrimaryKey {
			primaryKeys++
		}
		if c.AutoIncrement && (!c.PrimaryKey || c.Type != ColumnInteger) {
			return fmt.Errorf("table %s: autoincrement column %s must be an INTEGER primary key", t.Name, c.Name)
		}
	}
	if primaryKeys != 1 {
		return fmt.Errorf("table %s: exactly one primary key column is required, got %d", t.Name, primaryKeys)
	}

	for _, idx := range t.Indexes {
		if idx.Name == "" || len(idx.Columns) == 0 {
			return fmt.Errorf("table %s: index needs a name and columns", t.Name)
		}
		for _, col := range idx.Columns {
			if !seen[col] {
				return fmt.Errorf("table %s: index %s references unknown column %s", t.Name, idx.Name, col)
			}
		}
	}
	return nil
}

// PrimaryKey returns the primary key column name.
func (t Table) PrimaryKey() string {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return ""
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// CreateSQL renders the statements that create the table and its indexes.
// All statements use IF NOT EXISTS so they are safe to run on every open.
func (t Table) CreateSQL() []string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		var b strings.Builder
		b.WriteString(c.Name)
		b.WriteString(" ")
		b.WriteString(string(c.Type))
		if c.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
		if c.AutoIncrement {
			b.WriteString(" AUTOINCREMENT")
		}
		if c.NotNull {
			b.WriteString(" NOT NULL")
		}
		if c.Collate != "" {
			b.WriteString(" COLLATE ")
			b.WriteString(c.Collate)
		}
		defs[i] = b.String()
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.Name, strings.Join(defs, ",\n\t")),
	}
	for _, idx := range t.Indexes {
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s(%s)",
			unique, idx.Name, t.Name, strings.Join(idx.Columns, ", ")))
	}
	return stmts
}
