package dsl

// PropertyType — абстрактный тип скалярного свойства.
type PropertyType string

const (
	TypeInteger  PropertyType = "integer"
	TypeLong     PropertyType = "long"
	TypeFloat    PropertyType = "float"
	TypeDouble   PropertyType = "double"
	TypeDecimal  PropertyType = "decimal"
	TypeText     PropertyType = "text"
	TypeBoolean  PropertyType = "boolean"
	TypeDate     PropertyType = "date"
	TypeDateTime PropertyType = "datetime"
	TypeJSON     PropertyType = "json"
	TypeOption   PropertyType = "option"
)

// Model описывает одну сущность приложения и её физическую таблицу.
type Model struct {
	Namespace    string
	SingularCode string
	PluralCode   string
	Name         string
	Schema       string // пусто = схема по умолчанию из конфига
	TableName    string
	Properties   []Property
}

// FQN возвращает "namespace.singularCode".
func (m *Model) FQN() string {
	return m.Namespace + "." + m.SingularCode
}

// Property returns the property with the given code.
func (m *Model) Property(code string) (Property, bool) {
	for _, p := range m.Properties {
		if p.Code == code {
			return p, true
		}
	}
	return Property{}, false
}

// Property — поле модели. Форма поля задаётся Spec: Scalar, RelationOne или RelationMany.
type Property struct {
	Code     string
	Name     string
	Required bool
	Spec     PropertySpec
}

// PropertySpec закрытый набор вариантов свойства.
type PropertySpec interface {
	isPropertySpec()
}

// Scalar — обычная колонка.
type Scalar struct {
	Type          PropertyType
	ColumnName    string // пусто = Code
	AutoIncrement bool
	DefaultValue  string // SQL-выражение как есть
	Dictionary    string // код справочника для option
}

// RelationOne — внешний ключ на таблице владельца.
type RelationOne struct {
	TargetSingularCode string
	TargetIDColumnName string
}

// RelationMany — либо link-таблица (many-to-many), либо обратный FK на таблице цели.
type RelationMany struct {
	TargetSingularCode string
	SelfIDColumnName   string
	TargetIDColumnName string
	LinkSchema         string
	LinkTableName      string
}

func (Scalar) isPropertySpec()       {}
func (RelationOne) isPropertySpec()  {}
func (RelationMany) isPropertySpec() {}

// HasLinkTable сообщает, хранится ли связь в отдельной таблице.
func (r RelationMany) HasLinkTable() bool { return r.LinkTableName != "" }

// Relation возвращает "one", "many" или "" для скаляра.
func (p Property) Relation() string {
	switch p.Spec.(type) {
	case RelationOne:
		return "one"
	case RelationMany:
		return "many"
	default:
		return ""
	}
}

// ColumnName — колонка, которую свойство занимает в таблице владельца.
// Для many-связей колонки на стороне владельца нет.
func (p Property) ColumnName() string {
	switch s := p.Spec.(type) {
	case Scalar:
		if s.ColumnName != "" {
			return s.ColumnName
		}
		return p.Code
	case RelationOne:
		return s.TargetIDColumnName
	default:
		return ""
	}
}
