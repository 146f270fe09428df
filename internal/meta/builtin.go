package meta

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"strings"

	"rapidmeta/internal/dsl"
)

const (
	// Namespace — пространство имён встроенных meta-моделей.
	Namespace = "meta"

	ModelSingularCode    = "model"
	PropertySingularCode = "property"
)

//go:embed builtin.dsl
var builtinDSL string

// BuiltinModels возвращает свежую копию встроенных моделей meta.model и meta.property.
func BuiltinModels() []*dsl.Model {
	models, err := dsl.ParseModels(strings.NewReader(builtinDSL))
	if err != nil {
		panic("meta: builtin models: " + err.Error())
	}
	return models
}

// StaticModels — встроенные модели, за ними модели из *.dsl в dslDir.
// Отсутствующий каталог не ошибка.
func StaticModels(dslDir string) ([]*dsl.Model, error) {
	models := BuiltinModels()
	if dslDir == "" {
		return models, nil
	}
	if _, err := os.Stat(dslDir); errors.Is(err, fs.ErrNotExist) {
		return models, nil
	}
	fromDSL, err := dsl.LoadAllModels(dslDir)
	if err != nil {
		return nil, err
	}
	return append(models, fromDSL...), nil
}
