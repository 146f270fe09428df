package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	queryTables = `SELECT table_schema, table_name FROM information_schema.tables`

	queryColumns = `SELECT table_schema, table_name, column_name, data_type, udt_name, is_nullable,
  column_default, character_maximum_length, numeric_precision, numeric_scale
FROM information_schema.columns`
)

// ConnectivityError — база недоступна или каталог не читается; проход реконсиляции невозможен.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("database unreachable (%s): %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// Table — строка information_schema.tables.
type Table struct {
	Schema string
	Name   string
}

// Column — строка information_schema.columns.
type Column struct {
	Schema           string
	Table            string
	Name             string
	DataType         string
	UDTName          string
	Nullable         bool // is_nullable = 'YES'
	Default          *string
	CharMaxLength    *int64
	NumericPrecision *int64
	NumericScale     *int64
}

type tableKey struct{ schema, table string }

type columnKey struct{ schema, table, column string }

// Snapshot — неизменяемый срез каталога на один проход.
type Snapshot struct {
	TakenAt time.Time
	tables  map[tableKey]struct{}
	columns map[columnKey]Column
}

// NewSnapshot builds a snapshot from already read catalog rows.
func NewSnapshot(tables []Table, columns []Column) *Snapshot {
	s := &Snapshot{
		TakenAt: time.Now().UTC(),
		tables:  make(map[tableKey]struct{}, len(tables)),
		columns: make(map[columnKey]Column, len(columns)),
	}
	for _, t := range tables {
		s.tables[tableKey{t.Schema, t.Name}] = struct{}{}
	}
	for _, c := range columns {
		s.columns[columnKey{c.Schema, c.Table, c.Name}] = c
	}
	return s
}

// HasTable сообщает, есть ли таблица в снимке.
func (s *Snapshot) HasTable(schema, table string) bool {
	_, ok := s.tables[tableKey{schema, table}]
	return ok
}

// Column ищет колонку по схеме, таблице и имени.
func (s *Snapshot) Column(schema, table, column string) (Column, bool) {
	c, ok := s.columns[columnKey{schema, table, column}]
	return c, ok
}

// TableCount и ColumnCount нужны только для логов прохода.
func (s *Snapshot) TableCount() int  { return len(s.tables) }
func (s *Snapshot) ColumnCount() int { return len(s.columns) }

// Querier — минимум от *sql.DB, нужный интроспектору.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Introspector снимает Snapshot с живой базы.
type Introspector interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// CatalogIntrospector reads information_schema with exactly two queries.
type CatalogIntrospector struct {
	db Querier
}

func NewCatalogIntrospector(db Querier) *CatalogIntrospector {
	return &CatalogIntrospector{db: db}
}

func (ci *CatalogIntrospector) Snapshot(ctx context.Context) (*Snapshot, error) {
	tables, err := ci.tables(ctx)
	if err != nil {
		return nil, &ConnectivityError{Op: "tables", Err: err}
	}
	columns, err := ci.columns(ctx)
	if err != nil {
		return nil, &ConnectivityError{Op: "columns", Err: err}
	}
	return NewSnapshot(tables, columns), nil
}

func (ci *CatalogIntrospector) tables(ctx context.Context) ([]Table, error) {
	rows, err := ci.db.QueryContext(ctx, queryTables)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

func (ci *CatalogIntrospector) columns(ctx context.Context) ([]Column, error) {
	rows, err := ci.db.QueryContext(ctx, queryColumns)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var (
			c          Column
			isNullable string
			def        sql.NullString
			charLen    sql.NullInt64
			precision  sql.NullInt64
			scale      sql.NullInt64
		)
		if err := rows.Scan(&c.Schema, &c.Table, &c.Name, &c.DataType, &c.UDTName, &isNullable,
			&def, &charLen, &precision, &scale); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Nullable = isNullable == "YES"
		if def.Valid {
			c.Default = &def.String
		}
		c.CharMaxLength = nullInt(charLen)
		c.NumericPrecision = nullInt(precision)
		c.NumericScale = nullInt(scale)
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
