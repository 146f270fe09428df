package api

import (
	"strings"

	"rapidmeta/internal/dsl"
	"rapidmeta/internal/meta"
)

// resolveModel принимает "namespace.code" или просто "code" (если он уникален).
func resolveModel(reg *meta.Registry, raw string) (*dsl.Model, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	ns, code := splitFQN(raw)
	return reg.Find(ns, code)
}

// splitFQN("namespace.code") -> ("namespace","code")
func splitFQN(fqn string) (string, string) {
	i := strings.IndexByte(fqn, '.')
	if i <= 0 || i >= len(fqn)-1 {
		return "", fqn
	}
	return fqn[:i], fqn[i+1:]
}
