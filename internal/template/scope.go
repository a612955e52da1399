// Package template implements the one templating contract shared by
// prompts, command strings, file contents, and paths:
// ${identifier} / ${obj.field} substitution, a predicate sub-language for
// enableIf, and a graceful-fallthrough rule for setVariable. Hand-rolled
// byte-level scanning rather than text/template, since text/template's
// {{ }} delimiters and hard-fail-on-missing-key semantics don't match
// this contract — justified in DESIGN.md as a stdlib-only leaf.
package template

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func lookupEnv(spec string) (string, bool) {
	name, def, hasDefault := strings.Cut(spec, ":-")
	if v, ok := os.LookupEnv(name); ok {
		return v, true
	}
	if hasDefault {
		return def, true
	}
	return "", false
}

// Scope is the variable environment a template resolves against: a flat
// namespace of dotted paths to arbitrary values (string, bool, number,
// []interface{}, map[string]interface{}).
type Scope struct {
	values map[string]interface{}
}

func NewScope() *Scope {
	return &Scope{values: map[string]interface{}{}}
}

// Set binds a value at name, replacing whatever was stored there; a map
// value is not merged with an existing map under the same name. Blocks
// use this to publish their outputVariable, and plan/CLI variable
// layering uses it to seed scope.
// A string value containing ${...} gets one resolution attempt against
// the current scope; any failure preserves the original string
// unchanged, so external placeholder syntax (Maven's ${project.version}
// in a generated POM) survives round-trip storage.
func (s *Scope) Set(name string, value interface{}) {
	if str, ok := value.(string); ok && strings.Contains(str, "${") {
		if rendered, err := Render(str, s); err == nil {
			s.values[name] = rendered
			return
		}
	}
	s.values[name] = value
}

// SetAll bulk-sets from a flat string map, used to seed scope from plan
// variables and CLI overrides. All names land raw first, then each
// ${...}-bearing value gets its one resolution attempt, so cross
// references within the same batch resolve regardless of map order.
func (s *Scope) SetAll(vars map[string]string) {
	for k, v := range vars {
		s.values[k] = v
	}
	for k, v := range vars {
		if strings.Contains(v, "${") {
			if rendered, err := Render(v, s); err == nil {
				s.values[k] = rendered
			}
		}
	}
}

// Get resolves a dotted path against scope: a value stored under the
// whole path as one flat name wins, otherwise it descends into maps and,
// for numeric segments, lists.
func (s *Scope) Get(path string) (interface{}, bool) {
	segments := strings.Split(path, ".")
	if strings.HasPrefix(path, "env.") {
		name := strings.TrimPrefix(path, "env.")
		if v, ok := lookupEnv(name); ok {
			return v, true
		}
		return nil, false
	}
	if v, ok := s.values[path]; ok {
		return v, true
	}
	var cur interface{} = s.values
	for _, seg := range segments {
		next, ok := descend(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Clone produces a shallow copy of scope, used when a task or batch item
// needs an isolated overlay (e.g. current_item/current_index bindings in
// AIPromptBatch) without mutating the parent scope.
func (s *Scope) Clone() *Scope {
	clone := NewScope()
	for k, v := range s.values {
		clone.values[k] = v
	}
	return clone
}

// Native returns the full flat value map, e.g. for variableSnapshot
// persistence.
func (s *Scope) Native() map[string]interface{} {
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func descend(cur interface{}, seg string) (interface{}, bool) {
	switch m := cur.(type) {
	case map[string]interface{}:
		v, ok := m[seg]
		return v, ok
	case []interface{}:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(m) {
			return nil, false
		}
		return m[idx], true
	default:
		return nil, false
	}
}

// coerceToString renders lists/maps via their natural string form when
// embedded in text, rather than failing on non-string substitutions.
func coerceToString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
