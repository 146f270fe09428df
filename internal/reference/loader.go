package reference

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog — все справочники, загруженные из каталога.
type Catalog map[string]Dictionary

// Has реализует проверку наличия справочника для линтера схемы.
func (c Catalog) Has(code string) bool {
	_, ok := c[code]
	return ok
}

// Codes returns dictionary codes in sorted order.
func (c Catalog) Codes() []string {
	out := make([]string, 0, len(c))
	for code := range c {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// LoadCatalog читает все *.yaml/*.yml из dir. Отсутствующий каталог — пустой Catalog.
func LoadCatalog(dir string) (Catalog, error) {
	result := make(Catalog)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, nil
		}
		return nil, err
	}
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var d Dictionary
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		// код справочника — из файла или из имени файла
		if strings.TrimSpace(d.Code) == "" {
			d.Code = strings.TrimSuffix(entry.Name(), ext)
		}
		if _, dup := result[d.Code]; dup {
			return nil, fmt.Errorf("%s: duplicate dictionary %q", path, d.Code)
		}
		sort.SliceStable(d.Items, func(i, j int) bool { return d.Items[i].Order < d.Items[j].Order })
		result[d.Code] = d
	}
	return result, nil
}
