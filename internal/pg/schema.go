package pg

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"rapidmeta/internal/dsl"
)

// Quoter экранирует идентификаторы под диалект.
type Quoter interface {
	QuoteTable(schema, table string) string
	QuoteObject(name string) string
}

// PostgresQuoter quotes identifiers the way pgx does.
type PostgresQuoter struct{}

func (PostgresQuoter) QuoteObject(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (PostgresQuoter) QuoteTable(schema, table string) string {
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

// ActionKind — вид DDL-операции.
type ActionKind string

const (
	ActionCreateTable     ActionKind = "create_table"
	ActionCreateColumn    ActionKind = "create_column"
	ActionAlterColumnType ActionKind = "alter_column_type"
	ActionSetDefault      ActionKind = "set_default"
	ActionDropDefault     ActionKind = "drop_default"
	ActionSetNotNull      ActionKind = "set_not_null"
	ActionDropNotNull     ActionKind = "drop_not_null"
	ActionCreateLinkTable ActionKind = "create_link_table"
	ActionDropTable       ActionKind = "drop_table"
	ActionDropColumn      ActionKind = "drop_column"
)

// Action — одна самодостаточная единица DDL-работы.
// Schema всегда уже разрешена (пустая схема модели заменена схемой по умолчанию).
type Action struct {
	Kind   ActionKind
	Model  string // FQN модели-источника, только для логов
	Schema string
	Table  string
	Column string

	// create_column / alter_column_type
	Type          dsl.PropertyType
	AutoIncrement bool
	NotNull       bool
	Default       string // create_column / set_default

	// create_link_table
	SelfColumn   string
	TargetColumn string
}

func CreateTable(schema, table string) Action {
	return Action{Kind: ActionCreateTable, Schema: schema, Table: table}
}

func CreateColumn(schema, table, column string, typ dsl.PropertyType, notNull, autoIncrement bool, def string) Action {
	return Action{
		Kind:          ActionCreateColumn,
		Schema:        schema,
		Table:         table,
		Column:        column,
		Type:          typ,
		NotNull:       notNull,
		AutoIncrement: autoIncrement,
		Default:       def,
	}
}

func AlterColumnType(schema, table, column string, typ dsl.PropertyType) Action {
	return Action{Kind: ActionAlterColumnType, Schema: schema, Table: table, Column: column, Type: typ}
}

func SetDefault(schema, table, column, expr string) Action {
	return Action{Kind: ActionSetDefault, Schema: schema, Table: table, Column: column, Default: expr}
}

func DropDefault(schema, table, column string) Action {
	return Action{Kind: ActionDropDefault, Schema: schema, Table: table, Column: column}
}

func SetNotNull(schema, table, column string) Action {
	return Action{Kind: ActionSetNotNull, Schema: schema, Table: table, Column: column}
}

func DropNotNull(schema, table, column string) Action {
	return Action{Kind: ActionDropNotNull, Schema: schema, Table: table, Column: column}
}

func CreateLinkTable(schema, table, selfColumn, targetColumn string) Action {
	return Action{Kind: ActionCreateLinkTable, Schema: schema, Table: table, SelfColumn: selfColumn, TargetColumn: targetColumn}
}

func DropTable(schema, table string) Action {
	return Action{Kind: ActionDropTable, Schema: schema, Table: table}
}

func DropColumn(schema, table, column string) Action {
	return Action{Kind: ActionDropColumn, Schema: schema, Table: table, Column: column}
}

// String — короткое описание для логов: create_column public.widgets.id
func (a Action) String() string {
	target := a.Schema + "." + a.Table
	if a.Column != "" {
		target += "." + a.Column
	}
	return string(a.Kind) + " " + target
}

// SQL рендерит действие в один DDL-оператор.
// Для неподдерживаемого типа возвращает *UnsupportedTypeError и пустую строку.
func (a Action) SQL(q Quoter) (string, error) {
	table := q.QuoteTable(a.Schema, a.Table)
	alterColumn := func(tail string) string {
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", table, q.QuoteObject(a.Column), tail)
	}

	switch a.Kind {
	case ActionCreateTable:
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ()", table), nil

	case ActionCreateColumn:
		var typ string
		if a.AutoIncrement && a.Type == dsl.TypeInteger {
			typ = AutoIncrementColumnType
		} else {
			ct, err := ColumnType(a.Type)
			if err != nil {
				return "", err
			}
			typ = ct
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "ALTER TABLE %s ADD %s %s", table, q.QuoteObject(a.Column), typ)
		if a.NotNull {
			sb.WriteString(" NOT NULL")
		}
		if a.Default != "" {
			sb.WriteString(" DEFAULT " + a.Default)
		}
		return sb.String(), nil

	case ActionAlterColumnType:
		ct, err := ColumnType(a.Type)
		if err != nil {
			return "", err
		}
		return alterColumn("TYPE " + ct), nil

	case ActionSetDefault:
		return alterColumn("SET DEFAULT " + a.Default), nil
	case ActionDropDefault:
		return alterColumn("DROP DEFAULT"), nil
	case ActionSetNotNull:
		return alterColumn("SET NOT NULL"), nil
	case ActionDropNotNull:
		return alterColumn("DROP NOT NULL"), nil

	case ActionCreateLinkTable:
		return fmt.Sprintf("CREATE TABLE %s (id serial NOT NULL, %s integer NOT NULL, %s integer NOT NULL)",
			table, q.QuoteObject(a.SelfColumn), q.QuoteObject(a.TargetColumn)), nil

	case ActionDropTable:
		return fmt.Sprintf("DROP TABLE %s", table), nil
	case ActionDropColumn:
		return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, q.QuoteObject(a.Column)), nil
	}
	return "", fmt.Errorf("unknown action kind %q", a.Kind)
}
