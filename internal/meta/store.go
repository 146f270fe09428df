package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"rapidmeta/internal/dsl"
	"rapidmeta/internal/pg"
)

// ModelRecord — строка meta_models.
type ModelRecord struct {
	ID           int64  `json:"id"`
	Namespace    string `json:"namespace"`
	SingularCode string `json:"singularCode"`
	PluralCode   string `json:"pluralCode,omitempty"`
	Name         string `json:"name,omitempty"`
	Schema       string `json:"schema,omitempty"`
	TableName    string `json:"tableName"`
}

// PropertyRecord — строка meta_properties.
type PropertyRecord struct {
	ID                 int64  `json:"id"`
	ModelID            int64  `json:"modelId"`
	Code               string `json:"code"`
	Name               string `json:"name,omitempty"`
	Type               string `json:"type,omitempty"`
	ColumnName         string `json:"columnName,omitempty"`
	Required           bool   `json:"required"`
	AutoIncrement      bool   `json:"autoIncrement"`
	DefaultValue       string `json:"defaultValue,omitempty"`
	Dictionary         string `json:"dictionary,omitempty"`
	Relation           string `json:"relation,omitempty"` // "", "one", "many"
	TargetSingularCode string `json:"targetSingularCode,omitempty"`
	TargetIDColumnName string `json:"targetIdColumnName,omitempty"`
	SelfIDColumnName   string `json:"selfIdColumnName,omitempty"`
	LinkSchema         string `json:"linkSchema,omitempty"`
	LinkTableName      string `json:"linkTableName,omitempty"`
}

// ToProperty переводит запись в вариант dsl.Property.
func (r PropertyRecord) ToProperty() (dsl.Property, error) {
	p := dsl.Property{Code: r.Code, Name: r.Name, Required: r.Required}
	switch r.Relation {
	case "":
		p.Spec = dsl.Scalar{
			Type:          dsl.PropertyType(r.Type),
			ColumnName:    r.ColumnName,
			AutoIncrement: r.AutoIncrement,
			DefaultValue:  r.DefaultValue,
			Dictionary:    r.Dictionary,
		}
	case "one":
		p.Spec = dsl.RelationOne{
			TargetSingularCode: r.TargetSingularCode,
			TargetIDColumnName: r.TargetIDColumnName,
		}
	case "many":
		p.Spec = dsl.RelationMany{
			TargetSingularCode: r.TargetSingularCode,
			SelfIDColumnName:   r.SelfIDColumnName,
			TargetIDColumnName: r.TargetIDColumnName,
			LinkSchema:         r.LinkSchema,
			LinkTableName:      r.LinkTableName,
		}
	default:
		return dsl.Property{}, fmt.Errorf("property %q: unknown relation %q", r.Code, r.Relation)
	}
	return p, nil
}

// ToModel собирает dsl.Model из записи модели и её свойств.
func (r ModelRecord) ToModel(props []PropertyRecord) (*dsl.Model, error) {
	m := &dsl.Model{
		Namespace:    r.Namespace,
		SingularCode: r.SingularCode,
		PluralCode:   r.PluralCode,
		Name:         r.Name,
		Schema:       r.Schema,
		TableName:    r.TableName,
	}
	for _, pr := range props {
		p, err := pr.ToProperty()
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.FQN(), err)
		}
		m.Properties = append(m.Properties, p)
	}
	return m, nil
}

// DB — то, что хранилище берёт от *sql.DB.
type DB interface {
	pg.Querier
	pg.Execer
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store хранит meta-записи в таблицах, описанных встроенными моделями.
type Store struct {
	db         DB
	models     string // квотированное имя таблицы
	properties string
	logger     *zap.Logger
}

func NewStore(db DB, defaultSchema string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := pg.PostgresQuoter{}
	return &Store{
		db:         db,
		models:     q.QuoteTable(defaultSchema, "meta_models"),
		properties: q.QuoteTable(defaultSchema, "meta_properties"),
		logger:     logger,
	}
}

const modelColumns = `id, COALESCE(namespace, ''), COALESCE(singular_code, ''), COALESCE(plural_code, ''),
  COALESCE(name, ''), COALESCE(db_schema, ''), COALESCE(table_name, '')`

const propertyColumns = `id, COALESCE(model_id, 0), COALESCE(code, ''), COALESCE(name, ''), COALESCE(type, ''),
  COALESCE(column_name, ''), COALESCE(required, false), COALESCE(auto_increment, false),
  COALESCE(default_value, ''), COALESCE(dictionary, ''), COALESCE(relation, ''),
  COALESCE(target_singular_code, ''), COALESCE(target_id_column_name, ''), COALESCE(self_id_column_name, ''),
  COALESCE(link_schema, ''), COALESCE(link_table_name, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanModel(s scanner) (ModelRecord, error) {
	var m ModelRecord
	err := s.Scan(&m.ID, &m.Namespace, &m.SingularCode, &m.PluralCode, &m.Name, &m.Schema, &m.TableName)
	return m, err
}

func scanProperty(s scanner) (PropertyRecord, error) {
	var p PropertyRecord
	err := s.Scan(&p.ID, &p.ModelID, &p.Code, &p.Name, &p.Type, &p.ColumnName, &p.Required, &p.AutoIncrement,
		&p.DefaultValue, &p.Dictionary, &p.Relation, &p.TargetSingularCode, &p.TargetIDColumnName,
		&p.SelfIDColumnName, &p.LinkSchema, &p.LinkTableName)
	return p, err
}

func (s *Store) ListModels(ctx context.Context) ([]ModelRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+modelColumns+" FROM "+s.models+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query meta models: %w", err)
	}
	defer rows.Close()

	var out []ModelRecord
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meta model: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListProperties возвращает свойства модели; modelID = 0 — все свойства.
func (s *Store) ListProperties(ctx context.Context, modelID int64) ([]PropertyRecord, error) {
	query := "SELECT " + propertyColumns + " FROM " + s.properties
	var args []any
	if modelID != 0 {
		query += " WHERE model_id = $1"
		args = append(args, modelID)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query meta properties: %w", err)
	}
	defer rows.Close()

	var out []PropertyRecord
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meta property: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) FindModelByID(ctx context.Context, id int64) (*ModelRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+modelColumns+" FROM "+s.models+" WHERE id = $1", id)
	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find meta model %d: %w", id, err)
	}
	return &m, nil
}

func (s *Store) FindPropertyByID(ctx context.Context, id int64) (*PropertyRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+propertyColumns+" FROM "+s.properties+" WHERE id = $1", id)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPropertyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find meta property %d: %w", id, err)
	}
	return &p, nil
}

func (s *Store) CreateModel(ctx context.Context, m ModelRecord) (ModelRecord, error) {
	err := s.db.QueryRowContext(ctx, "INSERT INTO "+s.models+
		" (namespace, singular_code, plural_code, name, db_schema, table_name) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id",
		m.Namespace, m.SingularCode, m.PluralCode, m.Name, m.Schema, m.TableName).Scan(&m.ID)
	if err != nil {
		return ModelRecord{}, fmt.Errorf("insert meta model: %w", err)
	}
	return m, nil
}

// UpdateModel заменяет изменяемые поля; возвращает запись до и после.
func (s *Store) UpdateModel(ctx context.Context, m ModelRecord) (before, after ModelRecord, err error) {
	prev, err := s.FindModelByID(ctx, m.ID)
	if err != nil {
		return ModelRecord{}, ModelRecord{}, err
	}
	_, err = s.db.ExecContext(ctx, "UPDATE "+s.models+
		" SET namespace = $2, singular_code = $3, plural_code = $4, name = $5, db_schema = $6, table_name = $7 WHERE id = $1",
		m.ID, m.Namespace, m.SingularCode, m.PluralCode, m.Name, m.Schema, m.TableName)
	if err != nil {
		return ModelRecord{}, ModelRecord{}, fmt.Errorf("update meta model %d: %w", m.ID, err)
	}
	return *prev, m, nil
}

// DeleteModel удаляет модель вместе с её свойствами (их колонки уходят вместе с таблицей).
func (s *Store) DeleteModel(ctx context.Context, id int64) (ModelRecord, error) {
	prev, err := s.FindModelByID(ctx, id)
	if err != nil {
		return ModelRecord{}, err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+s.properties+" WHERE model_id = $1", id); err != nil {
		return ModelRecord{}, fmt.Errorf("delete meta properties of model %d: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+s.models+" WHERE id = $1", id); err != nil {
		return ModelRecord{}, fmt.Errorf("delete meta model %d: %w", id, err)
	}
	return *prev, nil
}

func (s *Store) CreateProperty(ctx context.Context, p PropertyRecord) (PropertyRecord, error) {
	err := s.db.QueryRowContext(ctx, "INSERT INTO "+s.properties+
		` (model_id, code, name, type, column_name, required, auto_increment, default_value, dictionary,
  relation, target_singular_code, target_id_column_name, self_id_column_name, link_schema, link_table_name)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`,
		propertyArgs(p)...).Scan(&p.ID)
	if err != nil {
		return PropertyRecord{}, fmt.Errorf("insert meta property: %w", err)
	}
	return p, nil
}

func (s *Store) UpdateProperty(ctx context.Context, p PropertyRecord) (before, after PropertyRecord, err error) {
	prev, err := s.FindPropertyByID(ctx, p.ID)
	if err != nil {
		return PropertyRecord{}, PropertyRecord{}, err
	}
	args := append([]any{p.ID}, propertyArgs(p)...)
	_, err = s.db.ExecContext(ctx, "UPDATE "+s.properties+
		` SET model_id = $2, code = $3, name = $4, type = $5, column_name = $6, required = $7, auto_increment = $8,
  default_value = $9, dictionary = $10, relation = $11, target_singular_code = $12, target_id_column_name = $13,
  self_id_column_name = $14, link_schema = $15, link_table_name = $16 WHERE id = $1`, args...)
	if err != nil {
		return PropertyRecord{}, PropertyRecord{}, fmt.Errorf("update meta property %d: %w", p.ID, err)
	}
	return *prev, p, nil
}

func (s *Store) DeleteProperty(ctx context.Context, id int64) (PropertyRecord, error) {
	prev, err := s.FindPropertyByID(ctx, id)
	if err != nil {
		return PropertyRecord{}, err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+s.properties+" WHERE id = $1", id); err != nil {
		return PropertyRecord{}, fmt.Errorf("delete meta property %d: %w", id, err)
	}
	return *prev, nil
}

func propertyArgs(p PropertyRecord) []any {
	return []any{
		p.ModelID, p.Code, p.Name, p.Type, p.ColumnName, p.Required, p.AutoIncrement, p.DefaultValue, p.Dictionary,
		p.Relation, p.TargetSingularCode, p.TargetIDColumnName, p.SelfIDColumnName, p.LinkSchema, p.LinkTableName,
	}
}

// LoadModels читает все meta-записи и собирает из них модели.
// Битые модели пропускаются с предупреждением.
func (s *Store) LoadModels(ctx context.Context) ([]*dsl.Model, error) {
	records, err := s.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	props, err := s.ListProperties(ctx, 0)
	if err != nil {
		return nil, err
	}
	byModel := make(map[int64][]PropertyRecord, len(records))
	for _, p := range props {
		byModel[p.ModelID] = append(byModel[p.ModelID], p)
	}

	out := make([]*dsl.Model, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.SingularCode) == "" || strings.TrimSpace(r.TableName) == "" {
			s.logger.Warn("Meta model record is incomplete, skipped", zap.Int64("id", r.ID))
			continue
		}
		m, err := r.ToModel(byModel[r.ID])
		if err != nil {
			s.logger.Warn("Meta model record is invalid, skipped", zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
