// Package serialize converts typed resource property structs to
// CloudFormation property maps and derives logical IDs.
package serialize

import (
	"encoding/json"
	"reflect"
	"strings"
	"unicode"
)

// Properties serializes a struct to CloudFormation resource properties.
// Zero values are omitted, json tags name the keys, and values implementing
// json.Marshaler (intrinsics) are kept in their marshaled form.
func Properties(v any) (map[string]any, error) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, nil
		}
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return nil, nil
	}

	result := make(map[string]any)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)

		if !field.IsExported() {
			continue
		}

		name := fieldName(field)
		if name == "-" {
			continue
		}

		if isZeroValue(fieldVal) {
			continue
		}

		serialized, err := serializeValue(fieldVal)
		if err != nil {
			return nil, err
		}

		if serialized != nil {
			result[name] = serialized
		}
	}

	return result, nil
}

func fieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}

	name := strings.Split(tag, ",")[0]
	if name == "" {
		return field.Name
	}
	return name
}

func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.IsNil() || v.Len() == 0
	case reflect.String:
		return v.String() == ""
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Struct:
		if v.CanInterface() {
			if zeroer, ok := v.Interface().(interface{ IsZero() bool }); ok {
				return zeroer.IsZero()
			}
		}
		return false
	default:
		return false
	}
}

func serializeValue(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		return serializeValue(v.Elem())
	}

	if v.CanInterface() {
		if marshaler, ok := v.Interface().(json.Marshaler); ok {
			return viaJSON(marshaler)
		}
	}

	switch v.Kind() {
	case reflect.Struct:
		if hasJSONTags(v.Type()) {
			return Properties(v.Interface())
		}
		return viaJSON(v.Interface())

	case reflect.Slice:
		if v.Len() == 0 {
			return nil, nil
		}
		result := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := serializeValue(v.Index(i))
			if err != nil {
				return nil, err
			}
			result[i] = elem
		}
		return result, nil

	case reflect.Map:
		if v.Len() == 0 {
			return nil, nil
		}
		result := make(map[string]any)
		iter := v.MapRange()
		for iter.Next() {
			val, err := serializeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			result[iter.Key().String()] = val
		}
		return result, nil

	case reflect.String:
		return v.String(), nil

	case reflect.Bool:
		return v.Bool(), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), nil

	case reflect.Float32, reflect.Float64:
		return v.Float(), nil

	default:
		return viaJSON(v.Interface())
	}
}

// hasJSONTags reports whether any exported field of t carries a json tag.
// Untagged structs (such as re-exported intrinsic types) keep their plain
// encoding/json form.
func hasJSONTags(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if _, ok := t.Field(i).Tag.Lookup("json"); ok {
			return true
		}
	}
	return false
}

func viaJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// LogicalID converts a resource name to a CloudFormation logical ID.
// Non-alphanumeric characters separate words:
//
//	"hello_world" → "HelloWorld"
//	"my-api v2"   → "MyApiV2"
func LogicalID(s string) string {
	var result strings.Builder
	capitalizeNext := true

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) || r > unicode.MaxASCII {
			capitalizeNext = true
			continue
		}
		if capitalizeNext {
			result.WriteRune(unicode.ToUpper(r))
			capitalizeNext = false
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}
