package graph

import "fmt"

// ValueKind discriminates the Value sum type: a closed, typed union
// standing in for an open property map, addressable without reflection.
type ValueKind int

const (
	KindBool ValueKind = iota
	KindI64
	KindF64
	KindStr
	KindList
	KindMap
)

// Value is a single property/metric payload. Exactly one of the typed
// fields is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	B    bool
	I    int64
	F    float64
	S    string
	L    []Value
	M    map[string]Value
}

func Bool(b bool) Value             { return Value{Kind: KindBool, B: b} }
func I64(i int64) Value             { return Value{Kind: KindI64, I: i} }
func F64(f float64) Value           { return Value{Kind: KindF64, F: f} }
func Str(s string) Value            { return Value{Kind: KindStr, S: s} }
func List(vs ...Value) Value        { return Value{Kind: KindList, L: vs} }
func Map(m map[string]Value) Value  { return Value{Kind: KindMap, M: m} }

// Native converts a Value back into a plain Go value, for template
// scope and JSON export.
func (v Value) Native() interface{} {
	switch v.Kind {
	case KindBool:
		return v.B
	case KindI64:
		return v.I
	case KindF64:
		return v.F
	case KindStr:
		return v.S
	case KindList:
		out := make([]interface{}, len(v.L))
		for i, e := range v.L {
			out[i] = e.Native()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.M))
		for k, e := range v.M {
			out[k] = e.Native()
		}
		return out
	default:
		return nil
	}
}

// FromNative wraps a plain Go value (as produced by encoding/json
// unmarshalling into interface{}) into a Value.
func FromNative(v interface{}) (Value, error) {
	switch t := v.(type) {
	case bool:
		return Bool(t), nil
	case int:
		return I64(int64(t)), nil
	case int64:
		return I64(t), nil
	case float64:
		return F64(t), nil
	case string:
		return Str(t), nil
	case []interface{}:
		out := make([]Value, len(t))
		for i, e := range t {
			cv, err := FromNative(e)
			if err != nil {
				return Value{}, err
			}
			out[i] = cv
		}
		return List(out...), nil
	case map[string]interface{}:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			cv, err := FromNative(e)
			if err != nil {
				return Value{}, err
			}
			out[k] = cv
		}
		return Map(out), nil
	case nil:
		return Str(""), nil
	default:
		return Value{}, fmt.Errorf("graph: unsupported native value type %T", v)
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return fmt.Sprintf("%t", v.B)
	case KindI64:
		return fmt.Sprintf("%d", v.I)
	case KindF64:
		return fmt.Sprintf("%g", v.F)
	case KindStr:
		return v.S
	case KindList:
		return fmt.Sprintf("%v", v.Native())
	case KindMap:
		return fmt.Sprintf("%v", v.Native())
	default:
		return ""
	}
}
