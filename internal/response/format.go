package response

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

const (
	nullCell   = "null"
	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// FormatCellValue renders a raw cell for display. It accepts any value and
// never panics: nil renders as "null", times as ISO-8601 in UTC, composite
// values as JSON and scalars in their plain string form.
func FormatCellValue(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = fmt.Sprintf("<%T>", v)
		}
	}()

	switch value := v.(type) {
	case nil:
		return nullCell
	case string:
		return value
	case []byte:
		if value == nil {
			return nullCell
		}
		return string(value)
	case time.Time:
		return value.UTC().Format(timeLayout)
	case *time.Time:
		if value == nil {
			return nullCell
		}
		return value.UTC().Format(timeLayout)
	case bool:
		return strconv.FormatBool(value)
	case int:
		return strconv.Itoa(value)
	case int8:
		return strconv.FormatInt(int64(value), 10)
	case int16:
		return strconv.FormatInt(int64(value), 10)
	case int32:
		return strconv.FormatInt(int64(value), 10)
	case int64:
		return strconv.FormatInt(value, 10)
	case uint:
		return strconv.FormatUint(uint64(value), 10)
	case uint8:
		return strconv.FormatUint(uint64(value), 10)
	case uint16:
		return strconv.FormatUint(uint64(value), 10)
	case uint32:
		return strconv.FormatUint(uint64(value), 10)
	case uint64:
		return strconv.FormatUint(value, 10)
	case float32:
		return formatFloat(float64(value), 32)
	case float64:
		return formatFloat(value, 64)
	case json.Number:
		return value.String()
	case error:
		if isNil(v) {
			return nullCell
		}
		return value.Error()
	case fmt.Stringer:
		if isNil(v) {
			return nullCell
		}
		return value.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nullCell
		}
		return formatJSON(v)
	case reflect.Array, reflect.Struct:
		return formatJSON(v)
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if rv.IsNil() {
			return nullCell
		}
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if abs := math.Abs(f); abs >= 1e21 || (abs != 0 && abs < 1e-6) {
		return strconv.FormatFloat(f, 'g', -1, bits)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

// formatJSON serializes composite values. encoding/json reports cycles and
// unsupported kinds as errors, which fall back to the type name.
func formatJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%T>", v)
	}
	return string(raw)
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
