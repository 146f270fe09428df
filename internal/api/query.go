package api

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ==== Типы сортировки и параметров листинга ====

type SortKey struct {
	Field string
	Desc  bool
}

type ListParams struct {
	Limit   int
	Offset  int
	Sort    []SortKey
	Filters map[string][]string
}

// ==== Парсинг query-параметров ====

func parseListParams(q url.Values) ListParams {
	// limit
	limit := 50
	lv := q.Get("_limit")
	if lv == "" {
		lv = q.Get("limit")
	}
	if lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n >= 0 && n <= 1000 {
			limit = n
		}
	}

	// offset
	offset := 0
	ov := q.Get("_offset")
	if ov == "" {
		ov = q.Get("offset")
	}
	if ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			offset = n
		}
	}

	// sort: "namespace,-id"
	var sortKeys []SortKey
	sv := strings.TrimSpace(q.Get("_sort"))
	if sv == "" {
		sv = strings.TrimSpace(q.Get("sort"))
	}
	for _, p := range strings.Split(sv, ",") {
		p = strings.TrimSpace(p)
		desc := false
		if strings.HasPrefix(p, "-") {
			desc = true
			p = strings.TrimPrefix(p, "-")
		} else {
			p = strings.TrimPrefix(p, "+")
		}
		if p != "" {
			sortKeys = append(sortKeys, SortKey{Field: p, Desc: desc})
		}
	}

	// фильтры (исключаем служебные ключи)
	filters := make(map[string][]string)
	for key, vals := range q {
		switch key {
		case "offset", "limit", "sort", "_offset", "_limit", "_sort":
			continue
		}
		clean := make([]string, 0, len(vals))
		for _, v := range vals {
			if strings.TrimSpace(v) != "" {
				clean = append(clean, v)
			}
		}
		if len(clean) > 0 {
			filters[key] = clean
		}
	}

	return ListParams{Limit: limit, Offset: offset, Sort: sortKeys, Filters: filters}
}

// ==== Утилита ====

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// fieldFunc достаёт значение поля записи по JSON-имени.
type fieldFunc[T any] func(item T, field string) (any, bool)

// applyListParams фильтрует (равенство, OR внутри одного ключа), сортирует и режет страницу.
// Возвращает страницу и общее число после фильтрации.
func applyListParams[T any](items []T, lp ListParams, field fieldFunc[T]) ([]T, int) {
	filtered := make([]T, 0, len(items))
	for _, it := range items {
		if matchFilters(it, lp.Filters, field) {
			filtered = append(filtered, it)
		}
	}

	if len(lp.Sort) > 0 {
		sort.SliceStable(filtered, func(i, j int) bool {
			for _, k := range lp.Sort {
				if c := cmpByKey(filtered[i], filtered[j], k, field); c != 0 {
					return c < 0
				}
			}
			return false
		})
	}

	total := len(filtered)
	start := min(lp.Offset, total)
	end := min(start+lp.Limit, total)
	return filtered[start:end], total
}

func matchFilters[T any](it T, filters map[string][]string, field fieldFunc[T]) bool {
	for key, want := range filters {
		got, ok := field(it, key)
		if !ok {
			// неизвестные поля игнорируем
			continue
		}
		s := toString(got)
		hit := false
		for _, w := range want {
			if strings.EqualFold(s, w) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// числа сравниваем как числа, остальное строково
func cmpByKey[T any](a, b T, k SortKey, field fieldFunc[T]) int {
	va, _ := field(a, k.Field)
	vb, _ := field(b, k.Field)
	rel := 0
	ia, aInt := va.(int64)
	ib, bInt := vb.(int64)
	if aInt && bInt {
		switch {
		case ia < ib:
			rel = -1
		case ia > ib:
			rel = +1
		}
	} else {
		rel = strings.Compare(toString(va), toString(vb))
	}
	if k.Desc {
		rel = -rel
	}
	return rel
}
