package dsl

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	entityRe = regexp.MustCompile(`^entity\s+(\w+)\s*:(.*)$`)
	fieldRe  = regexp.MustCompile(`^\s*([\w_]+):\s*([^\s#]+)(.*)$`)
	oneRe    = regexp.MustCompile(`^one\[([A-Za-z0-9_]+)\]$`)
	manyRe   = regexp.MustCompile(`^many\[([A-Za-z0-9_]*)\]$`)
	moduleRe = regexp.MustCompile(`^\s*module\s+([A-Za-z0-9_.-]+)\s*$`)
)

// splitOptionTokens делит "k=v k2=\"v 2\" default='a b'" на токены, не рвёт по пробелам внутри кавычек/скобок.
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	parenDepth := 0 // default=now() и т.п.

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		case '(':
			if !inSingle && !inDouble {
				parenDepth++
			}
			buf = append(buf, r)
		case ')':
			if !inSingle && !inDouble && parenDepth > 0 {
				parenDepth--
			}
			buf = append(buf, r)
		default:
			if (r == ' ' || r == '\t' || r == ',') && !inSingle && !inDouble && parenDepth == 0 {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

// stripComment срезает "# ..." вне кавычек.
func stripComment(s string) string {
	inSingle, inDouble := false, false
	for i, r := range s {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '#':
			if !inSingle && !inDouble {
				return strings.TrimSpace(s[:i])
			}
		}
	}
	return strings.TrimSpace(s)
}

// parseOptions: флаг без значения → "true"; двойные кавычки снимаются,
// одинарные остаются (это SQL-литерал в default).
func parseOptions(raw string) map[string]string {
	opts := map[string]string{}
	for _, tok := range splitOptionTokens(raw) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if !strings.Contains(tok, "=") {
			opts[strings.ToLower(tok)] = "true"
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := strings.TrimSpace(kv[1])
		if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
			v = v[1 : len(v)-1]
		}
		if k != "" {
			opts[k] = v
		}
	}
	return opts
}

func isTrue(opts map[string]string, key string) bool {
	v, ok := opts[key]
	if !ok {
		return false
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// элементарная плюрализация: widget -> widgets
func plural(s string) string {
	s = strings.ToLower(s)
	if strings.HasSuffix(s, "s") {
		return s
	}
	return s + "s"
}

func parseProperty(name, rawType, tail string) Property {
	opts := parseOptions(stripComment(tail))
	p := Property{
		Code:     name,
		Name:     opts["name"],
		Required: isTrue(opts, "required"),
	}

	if m := oneRe.FindStringSubmatch(rawType); m != nil {
		col := opts["column"]
		if col == "" {
			col = name + "_id"
		}
		p.Spec = RelationOne{TargetSingularCode: m[1], TargetIDColumnName: col}
		return p
	}
	if m := manyRe.FindStringSubmatch(rawType); m != nil {
		p.Spec = RelationMany{
			TargetSingularCode: m[1],
			SelfIDColumnName:   opts["self"],
			TargetIDColumnName: opts["target"],
			LinkSchema:         opts["link_schema"],
			LinkTableName:      opts["link"],
		}
		return p
	}

	// примитивы оставляем как есть: неизвестный тип отсеет генератор DDL
	p.Spec = Scalar{
		Type:          PropertyType(strings.ToLower(rawType)),
		ColumnName:    opts["column"],
		AutoIncrement: isTrue(opts, "auto_increment") || isTrue(opts, "autoincrement"),
		DefaultValue:  opts["default"],
		Dictionary:    opts["dict"],
	}
	return p
}

// ParseModels читает описание моделей из r.
func ParseModels(r io.Reader) ([]*Model, error) {
	var models []*Model
	var current *Model
	currentModule := ""

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := moduleRe.FindStringSubmatch(line); m != nil {
			currentModule = m[1]
			continue
		}

		// entity <singular>: table=... schema=... plural=... name=...
		if m := entityRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				models = append(models, current)
			}
			opts := parseOptions(stripComment(m[2]))
			current = &Model{
				Namespace:    currentModule,
				SingularCode: m[1],
				PluralCode:   opts["plural"],
				Name:         opts["name"],
				Schema:       opts["schema"],
				TableName:    opts["table"],
			}
			if current.PluralCode == "" {
				current.PluralCode = plural(current.SingularCode)
			}
			if current.TableName == "" {
				current.TableName = current.PluralCode
			}
			continue
		}
		if current == nil {
			// всё вне сущности игнорируем
			continue
		}

		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: cannot parse %q", lineNo, line)
		}
		if _, dup := current.Property(m[1]); dup {
			return nil, fmt.Errorf("line %d: duplicate property %q in %s", lineNo, m[1], current.SingularCode)
		}
		current.Properties = append(current.Properties, parseProperty(m[1], m[2], m[3]))
	}

	if current != nil {
		models = append(models, current)
	}
	return models, scanner.Err()
}

// LoadModels читает один .dsl файл.
func LoadModels(path string) ([]*Model, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseModels(file)
}

// LoadAllModels обходит root и собирает модели из всех *.dsl в лексикографическом порядке файлов.
func LoadAllModels(root string) ([]*Model, error) {
	var result []*Model
	seen := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".dsl") {
			return nil
		}

		models, err := LoadModels(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, m := range models {
			if m.Namespace == "" {
				return fmt.Errorf("entity %q in %s has no module — add `module <name>` at the top", m.SingularCode, path)
			}
			if prev, exists := seen[m.FQN()]; exists {
				return fmt.Errorf("duplicate entity %q (files: %s, %s)", m.FQN(), prev, path)
			}
			seen[m.FQN()] = path
			result = append(result, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
