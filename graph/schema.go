package graph

import (
	"encoding/json"
	"maps"
	"reflect"
)

// Field-level reducers for struct states. A custom schema combines them:
//
//	schema := graph.MergeFunc[Chat](func(cur, upd Chat) Chat {
//		return Chat{
//			Messages: graph.AppendSlice(cur.Messages, upd.Messages),
//			Turns:    graph.AddCounter(cur.Turns, upd.Turns),
//			Topic:    graph.Override(cur.Topic, upd.Topic),
//		}
//	})

// Number is the set of types AddCounter accepts.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// AppendSlice returns a new slice holding current followed by update.
func AppendSlice[T any](current, update []T) []T {
	if len(current) == 0 && len(update) == 0 {
		return current
	}
	out := make([]T, 0, len(current)+len(update))
	out = append(out, current...)
	return append(out, update...)
}

// AddCounter sums current and update.
func AddCounter[N Number](current, update N) N {
	return current + update
}

// MergeMap returns a new map with the entries of update laid over current.
func MergeMap[K comparable, V any](current, update map[K]V) map[K]V {
	if current == nil && update == nil {
		return nil
	}
	out := make(map[K]V, len(current)+len(update))
	maps.Copy(out, current)
	maps.Copy(out, update)
	return out
}

// Override returns update.
func Override[T any](_, update T) T {
	return update
}

// Reducer combines the current value of a map key with an update.
type Reducer func(current, update any) any

// MapSchema is a StateSchema for map[string]any states with per-key
// reducers. Keys without a reducer are overwritten.
type MapSchema struct {
	Reducers map[string]Reducer
}

var _ StateSchema[map[string]any] = (*MapSchema)(nil)

// NewMapSchema creates a MapSchema without reducers.
func NewMapSchema() *MapSchema {
	return &MapSchema{
		Reducers: make(map[string]Reducer),
	}
}

// RegisterReducer adds a reducer for a specific key and returns the schema.
func (s *MapSchema) RegisterReducer(key string, reducer Reducer) *MapSchema {
	s.Reducers[key] = reducer
	return s
}

// Merge copies current and folds every key of update into the copy.
func (s *MapSchema) Merge(current, update map[string]any) map[string]any {
	result := make(map[string]any, len(current)+len(update))
	maps.Copy(result, current)

	for k, v := range update {
		if reducer, ok := s.Reducers[k]; ok {
			result[k] = reducer(result[k], v)
			continue
		}
		result[k] = v
	}
	return result
}

// OverwriteReducer replaces the old value with the new one.
func OverwriteReducer(_, update any) any {
	return update
}

// AppendReducer appends update to the current slice. Update may be a slice
// or a single element. Elements are converted to a common element type when
// that loses nothing, so a []any read back from a checkpoint keeps growing as
// the typed slice it was saved from. Otherwise the result is a []any holding
// every value.
func AppendReducer(current, update any) any {
	newVal := reflect.ValueOf(update)
	if current == nil {
		if !newVal.IsValid() {
			return []any{nil}
		}
		if newVal.Kind() == reflect.Slice {
			return update
		}
		slice := reflect.MakeSlice(reflect.SliceOf(newVal.Type()), 0, 1)
		return reflect.Append(slice, newVal).Interface()
	}

	currVal := reflect.ValueOf(current)
	if currVal.Kind() != reflect.Slice {
		return append([]any{current}, flatten(newVal)...)
	}
	if !newVal.IsValid() {
		return append(flatten(currVal), nil)
	}

	tail := newVal
	if newVal.Kind() != reflect.Slice {
		tail = reflect.Append(reflect.MakeSlice(reflect.SliceOf(newVal.Type()), 0, 1), newVal)
	}

	if head, ok := convertSlice(currVal, tail.Type().Elem(), tail.Len()); ok {
		return reflect.AppendSlice(head, tail).Interface()
	}
	if rest, ok := convertSlice(tail, currVal.Type().Elem(), 0); ok {
		out := reflect.MakeSlice(currVal.Type(), 0, currVal.Len()+rest.Len())
		out = reflect.AppendSlice(out, currVal)
		return reflect.AppendSlice(out, rest).Interface()
	}
	return append(flatten(currVal), flatten(newVal)...)
}

// SumReducer adds numeric values and falls back to overwriting for anything
// else. Operands of different numeric types, such as an int update on a
// float64 decoded from JSON, are summed in the type of update when the
// result is representable there.
func SumReducer(current, update any) any {
	u, ok := numeric(update)
	if !ok {
		return update
	}
	c, ok := numeric(current)
	if !ok {
		return update
	}
	if c.Type() == u.Type() {
		switch {
		case isInt(u.Kind()):
			return reflect.ValueOf(c.Int() + u.Int()).Convert(u.Type()).Interface()
		case isUint(u.Kind()):
			return reflect.ValueOf(c.Uint() + u.Uint()).Convert(u.Type()).Interface()
		default:
			return reflect.ValueOf(c.Float() + u.Float()).Convert(u.Type()).Interface()
		}
	}

	if isInt(c.Kind()) && isInt(u.Kind()) {
		return reflect.ValueOf(c.Int() + u.Int()).Convert(u.Type()).Interface()
	}
	sum := reflect.ValueOf(toFloat(c) + toFloat(u))
	if out, ok := convertValue(sum, u.Type()); ok {
		return out.Interface()
	}
	return sum.Interface()
}

// numeric unwraps v into a reflect.Value of a numeric kind. json.Number is
// parsed as int64 when possible and float64 otherwise.
func numeric(v any) (reflect.Value, bool) {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return reflect.ValueOf(i), true
		}
		f, err := n.Float64()
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(f), true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || !isNumber(rv.Kind()) {
		return reflect.Value{}, false
	}
	return rv, true
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isInt(v.Kind()):
		return float64(v.Int())
	case isUint(v.Kind()):
		return float64(v.Uint())
	default:
		return v.Float()
	}
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isNumber(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || k == reflect.Float32 || k == reflect.Float64
}

// convertValue converts v to t when the value survives the conversion
// unchanged. Interface values are unwrapped first.
func convertValue(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(t), t.Kind() == reflect.Interface
		}
		v = v.Elem()
	}
	if v.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(v)
		return out, true
	}
	if !isNumber(v.Kind()) || !isNumber(t.Kind()) {
		return reflect.Value{}, false
	}
	out := v.Convert(t)
	if out.Convert(v.Type()).Interface() != v.Interface() {
		return reflect.Value{}, false
	}
	if isUint(t.Kind()) && (isInt(v.Kind()) && v.Int() < 0 || !isInt(v.Kind()) && !isUint(v.Kind()) && v.Float() < 0) {
		return reflect.Value{}, false
	}
	return out, true
}

// convertSlice copies v into a new slice of elem, reserving room for extra
// more elements. It keeps v's slice type when the element type already matches.
func convertSlice(v reflect.Value, elem reflect.Type, extra int) (reflect.Value, bool) {
	typ := reflect.SliceOf(elem)
	if v.Type().Elem() == elem {
		typ = v.Type()
	}
	out := reflect.MakeSlice(typ, 0, v.Len()+extra)
	for i := 0; i < v.Len(); i++ {
		e, ok := convertValue(v.Index(i), elem)
		if !ok {
			return reflect.Value{}, false
		}
		out = reflect.Append(out, e)
	}
	return out, true
}

func flatten(v reflect.Value) []any {
	if !v.IsValid() {
		return []any{nil}
	}
	if v.Kind() != reflect.Slice {
		return []any{v.Interface()}
	}
	out := make([]any, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		out = append(out, v.Index(i).Interface())
	}
	return out
}
