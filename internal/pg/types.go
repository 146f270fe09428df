package pg

import (
	"fmt"

	"rapidmeta/internal/dsl"
)

// AutoIncrementColumnType — псевдотип Postgres для автоинкрементного integer.
const AutoIncrementColumnType = "serial"

// имена совпадают с udt_name из information_schema.columns
var propertyTypeColumnMap = map[dsl.PropertyType]string{
	dsl.TypeInteger:  "int4",
	dsl.TypeLong:     "int8",
	dsl.TypeFloat:    "float4",
	dsl.TypeDouble:   "float8",
	dsl.TypeDecimal:  "decimal",
	dsl.TypeText:     "text",
	dsl.TypeBoolean:  "bool",
	dsl.TypeDate:     "date",
	dsl.TypeDateTime: "timestamptz",
	dsl.TypeJSON:     "jsonb",
	dsl.TypeOption:   "text",
}

// UnsupportedTypeError is returned for property types missing from the type catalog.
type UnsupportedTypeError struct {
	Type dsl.PropertyType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("property type %q is not supported", string(e.Type))
}

// ColumnType maps an abstract property type to the native column type.
func ColumnType(t dsl.PropertyType) (string, error) {
	if ct, ok := propertyTypeColumnMap[t]; ok {
		return ct, nil
	}
	return "", &UnsupportedTypeError{Type: t}
}

// SupportedTypes returns every property type known to the catalog.
func SupportedTypes() []dsl.PropertyType {
	out := make([]dsl.PropertyType, 0, len(propertyTypeColumnMap))
	for t := range propertyTypeColumnMap {
		out = append(out, t)
	}
	return out
}

// IsAutoIncrement: serial имеет смысл только для integer.
func IsAutoIncrement(s dsl.Scalar) bool {
	return s.AutoIncrement && s.Type == dsl.TypeInteger
}

// SameColumnType сравнивает ожидаемый тип с udt_name из каталога.
// decimal в каталоге хранится как numeric.
func SameColumnType(expected, actual string) bool {
	if expected == actual {
		return true
	}
	return expected == "decimal" && actual == "numeric"
}
