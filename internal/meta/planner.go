package meta

import (
	"go.uber.org/zap"

	"rapidmeta/internal/dsl"
	"rapidmeta/internal/pg"
)

// Plan — упорядоченный результат планирования: сначала таблицы, потом колонки.
type Plan struct {
	Tables   []pg.Action // фаза A
	Columns  []pg.Action // фаза B
	Warnings []Warning
}

// Warning — свойство, пропущенное в этом проходе.
type Warning struct {
	Model    string `json:"model"`
	Property string `json:"property"`
	Message  string `json:"message"`
}

// Actions returns phase A followed by phase B.
func (p Plan) Actions() []pg.Action {
	out := make([]pg.Action, 0, len(p.Tables)+len(p.Columns))
	out = append(out, p.Tables...)
	return append(out, p.Columns...)
}

// Empty — нечего применять; предупреждения не считаются.
func (p Plan) Empty() bool { return len(p.Tables) == 0 && len(p.Columns) == 0 }

// Planner сравнивает модели реестра со снимком каталога.
// Решение по каждому свойству — чистая функция (свойство, колонка в снимке).
type Planner struct {
	registry *Registry
	logger   *zap.Logger
}

func NewPlanner(registry *Registry, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{registry: registry, logger: logger}
}

type planState struct {
	snap    *pg.Snapshot
	plan    Plan
	tables  map[[2]string]struct{}
	columns map[[3]string]struct{}
	logger  *zap.Logger
}

func (s *planState) addTable(a pg.Action) {
	key := [2]string{a.Schema, a.Table}
	if _, ok := s.tables[key]; ok {
		return
	}
	s.tables[key] = struct{}{}
	s.plan.Tables = append(s.plan.Tables, a)
}

// addColumnAction дедуплицирует create_column/create_link_table для моделей на одной таблице.
func (s *planState) addColumnAction(a pg.Action) {
	switch a.Kind {
	case pg.ActionCreateColumn:
		key := [3]string{a.Schema, a.Table, a.Column}
		if _, ok := s.columns[key]; ok {
			return
		}
		s.columns[key] = struct{}{}
	case pg.ActionCreateLinkTable:
		key := [2]string{a.Schema, a.Table}
		if _, ok := s.tables[key]; ok {
			return
		}
		s.tables[key] = struct{}{}
	}
	s.plan.Columns = append(s.plan.Columns, a)
}

func (s *planState) warn(m *dsl.Model, prop dsl.Property, msg string, fields ...zap.Field) {
	s.logger.Warn(msg, append([]zap.Field{zap.String("model", m.FQN()), zap.String("property", prop.Code)}, fields...)...)
	s.plan.Warnings = append(s.plan.Warnings, Warning{Model: m.FQN(), Property: prop.Code, Message: msg})
}

// Plan строит набор действий против одного снимка.
func (p *Planner) Plan(snap *pg.Snapshot) Plan {
	st := &planState{
		snap:    snap,
		tables:  map[[2]string]struct{}{},
		columns: map[[3]string]struct{}{},
		logger:  p.logger,
	}
	models := p.registry.Models()

	// фаза A: отсутствующие таблицы. Лишние таблицы не трогаем.
	for _, m := range models {
		schema := p.registry.SchemaOf(m)
		if snap.HasTable(schema, m.TableName) {
			continue
		}
		a := pg.CreateTable(schema, m.TableName)
		a.Model = m.FQN()
		st.addTable(a)
	}

	// фаза B: колонки и link-таблицы в порядке реестра
	for _, m := range models {
		for _, prop := range m.Properties {
			p.planProperty(st, m, prop)
		}
	}
	return st.plan
}

func (p *Planner) planProperty(st *planState, m *dsl.Model, prop dsl.Property) {
	switch spec := prop.Spec.(type) {
	case dsl.Scalar:
		p.planScalar(st, m, prop, spec)
	case dsl.RelationOne:
		p.planRelationOne(st, m, prop, spec)
	case dsl.RelationMany:
		p.planRelationMany(st, m, prop, spec)
	default:
		p.logger.Debug("Property without spec skipped", zap.String("model", m.FQN()), zap.String("property", prop.Code))
	}
}

func (p *Planner) planRelationOne(st *planState, m *dsl.Model, prop dsl.Property, spec dsl.RelationOne) {
	if _, ok := p.registry.FindBySingularCode(spec.TargetSingularCode); !ok {
		st.warn(m, prop, "Cannot find target model", zap.String("target", spec.TargetSingularCode))
		return
	}
	schema := p.registry.SchemaOf(m)
	if _, ok := st.snap.Column(schema, m.TableName, spec.TargetIDColumnName); ok {
		return
	}
	a := pg.CreateColumn(schema, m.TableName, spec.TargetIDColumnName, dsl.TypeInteger, prop.Required, false, "")
	a.Model = m.FQN()
	st.addColumnAction(a)
}

func (p *Planner) planRelationMany(st *planState, m *dsl.Model, prop dsl.Property, spec dsl.RelationMany) {
	if spec.HasLinkTable() {
		schema := p.registry.schemaOr(spec.LinkSchema)
		if st.snap.HasTable(schema, spec.LinkTableName) {
			// существующие link-таблицы не меняем
			return
		}
		a := pg.CreateLinkTable(schema, spec.LinkTableName, spec.SelfIDColumnName, spec.TargetIDColumnName)
		a.Model = m.FQN()
		st.addColumnAction(a)
		return
	}

	if spec.TargetSingularCode == "" {
		// ни цели, ни link-таблицы: форма не поддерживается
		return
	}
	target, ok := p.registry.FindBySingularCode(spec.TargetSingularCode)
	if !ok {
		st.warn(m, prop, "Cannot find target model", zap.String("target", spec.TargetSingularCode))
		return
	}
	if spec.SelfIDColumnName == "" {
		st.warn(m, prop, "Many relation without link table has no self id column")
		return
	}

	// обратный FK живёт на таблице цели
	schema := p.registry.SchemaOf(target)
	if _, ok := st.snap.Column(schema, target.TableName, spec.SelfIDColumnName); ok {
		return
	}
	a := pg.CreateColumn(schema, target.TableName, spec.SelfIDColumnName, dsl.TypeInteger, prop.Required, false, "")
	a.Model = m.FQN()
	st.addColumnAction(a)
}

func (p *Planner) planScalar(st *planState, m *dsl.Model, prop dsl.Property, spec dsl.Scalar) {
	schema := p.registry.SchemaOf(m)
	column := prop.ColumnName()
	autoIncrement := pg.IsAutoIncrement(spec)

	unsupported := func(err error) {
		st.warn(m, prop, err.Error(), zap.Error(err))
	}

	existing, ok := st.snap.Column(schema, m.TableName, column)
	if !ok {
		if !autoIncrement {
			if _, err := pg.ColumnType(spec.Type); err != nil {
				unsupported(err)
				return
			}
		}
		a := pg.CreateColumn(schema, m.TableName, column, spec.Type, prop.Required, spec.AutoIncrement, spec.DefaultValue)
		a.Model = m.FQN()
		st.addColumnAction(a)
		return
	}

	var actions []pg.Action

	// 1) тип; serial-колонки не трогаем
	if !autoIncrement {
		expected, err := pg.ColumnType(spec.Type)
		if err != nil {
			unsupported(err)
			return
		}
		if !pg.SameColumnType(expected, existing.UDTName) {
			actions = append(actions, pg.AlterColumnType(schema, m.TableName, column, spec.Type))
		}
	}

	// 2) default
	if spec.DefaultValue != "" {
		if existing.Default == nil {
			actions = append(actions, pg.SetDefault(schema, m.TableName, column, spec.DefaultValue))
		}
	} else if existing.Default != nil && !spec.AutoIncrement {
		actions = append(actions, pg.DropDefault(schema, m.TableName, column))
	}

	// 3) nullability; serial в Postgres всегда NOT NULL
	required := prop.Required || autoIncrement
	if required && existing.Nullable {
		actions = append(actions, pg.SetNotNull(schema, m.TableName, column))
	} else if !required && !existing.Nullable {
		actions = append(actions, pg.DropNotNull(schema, m.TableName, column))
	}

	for _, a := range actions {
		a.Model = m.FQN()
		st.addColumnAction(a)
	}
}
