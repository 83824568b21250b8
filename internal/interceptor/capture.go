// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package interceptor

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/norsu-alumni/logkeeper/internal/audit"
)

var entityIface = reflect.TypeOf((*Entity)(nil)).Elem()

// maxReprLength caps the entity repr embedded in audit messages.
const maxReprLength = 200

// fieldSnapshot returns the raw field values of e, before conversion.
func fieldSnapshot(e Entity) map[string]any {
	if fp, ok := e.(FieldProvider); ok {
		return fp.AuditFields()
	}
	rv := reflect.ValueOf(e)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	out := make(map[string]any, rv.NumField())
	collectFields(rv, out)
	return out
}

// collectFields copies exported fields of a struct into out, flattening
// untagged embedded structs the way encoding/json does.
func collectFields(rv reflect.Value, out map[string]any) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		fv := rv.Field(i)

		if sf.Anonymous && sf.Tag.Get("audit") == "" && sf.Tag.Get("json") == "" {
			inner := fv
			if inner.Kind() == reflect.Pointer {
				if inner.IsNil() {
					continue
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct && !isEntityType(sf.Type) {
				collectFields(inner, out)
				continue
			}
		}
		if !sf.IsExported() || !fv.CanInterface() {
			continue
		}
		name, skip := fieldName(sf)
		if skip {
			continue
		}
		out[name] = fv.Interface()
	}
}

// fieldName resolves the snapshot key from the audit tag, then the json tag,
// then the snake_case Go name.
func fieldName(sf reflect.StructField) (string, bool) {
	for _, key := range []string{"audit", "json"} {
		tag, ok := sf.Tag.Lookup(key)
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			return "", true
		}
		if name != "" {
			return name, false
		}
	}
	return toSnake(sf.Name), false
}

// toSnake converts a Go identifier to snake_case: UserID -> user_id.
func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isEntityType reports whether values of t (or pointers to t) are entities.
func isEntityType(t reflect.Type) bool {
	if t.Implements(entityIface) {
		return true
	}
	return t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface &&
		reflect.PointerTo(t).Implements(entityIface)
}

// convertValue renders v into a JSON-friendly snapshot value. The boolean is
// false when the value must be left out of the snapshot (collections of
// entities, functions, channels).
func convertValue(v any) (any, bool) {
	if v == nil {
		return nil, true
	}
	return convertReflect(reflect.ValueOf(v))
}

func convertReflect(rv reflect.Value) (any, bool) {
	if !rv.IsValid() {
		return nil, true
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		if isEntityType(rv.Type().Elem()) {
			return nil, false
		}
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil, true
		}
	}

	if rv.Kind() == reflect.Interface {
		return convertReflect(rv.Elem())
	}
	if rv.Kind() == reflect.Struct && !rv.Type().Implements(entityIface) && isEntityType(rv.Type()) {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		rv = ptr
	}

	if rv.CanInterface() {
		switch x := rv.Interface().(type) {
		case Entity:
			return referenceValue(x), true
		case time.Time:
			return x.UTC().Format(time.RFC3339), true
		case *time.Time:
			return x.UTC().Format(time.RFC3339), true
		case fmt.Stringer:
			return x.String(), true
		}
	}

	switch rv.Kind() {
	case reflect.Pointer:
		return convertReflect(rv.Elem())
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		return rv.String(), true
	case reflect.Slice, reflect.Array:
		elem := rv.Type().Elem()
		if elem.Kind() == reflect.Uint8 && rv.Kind() == reflect.Slice {
			return string(rv.Bytes()), true
		}
		items := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if item, ok := convertReflect(rv.Index(i)); ok {
				items = append(items, item)
			}
		}
		return items, true
	case reflect.Map:
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			if item, ok := convertReflect(iter.Value()); ok {
				m[fmt.Sprint(iter.Key().Interface())] = item
			}
		}
		return m, true
	case reflect.Struct:
		raw := make(map[string]any, rv.NumField())
		collectFields(rv, raw)
		m := make(map[string]any, len(raw))
		for name, fv := range raw {
			if item, ok := convertValue(fv); ok {
				m[name] = item
			}
		}
		return m, true
	case reflect.Complex64, reflect.Complex128:
		return fmt.Sprint(rv.Complex()), true
	default:
		return nil, false
	}
}

// referenceValue renders a related entity as {"id": key, "str": repr}.
func referenceValue(e Entity) map[string]any {
	ref := map[string]any{"id": nil, "str": reprOf(e)}
	if key, ok := e.AuditKey(); ok {
		ref["id"] = key
	}
	return ref
}

// reprOf returns the entity's display string, falling back to "<verbose> #<key>".
func reprOf(e Entity) string {
	if s, ok := e.(fmt.Stringer); ok {
		if repr := s.String(); repr != "" {
			return audit.Truncate(repr, maxReprLength)
		}
	}
	if key, ok := e.AuditKey(); ok {
		return fmt.Sprintf("%s #%d", verboseName(e), key)
	}
	return verboseName(e)
}

// changedFields returns the sorted keys of before∪after whose JSON encodings
// differ, or nil when nothing changed.
func changedFields(before, after audit.Values) []string {
	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}

	var changed []string
	for k := range keys {
		a, inBefore := before[k]
		b, inAfter := after[k]
		if inBefore != inAfter || !jsonEqual(a, b) {
			changed = append(changed, k)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	sort.Strings(changed)
	return changed
}

func jsonEqual(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
	return bytes.Equal(ja, jb)
}
