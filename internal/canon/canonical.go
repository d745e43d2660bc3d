package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Marshal produces canonical JSON for v.
//
// Strings, bools, integers, []any and map[string]any are encoded directly.
// Any other value (structs, typed slices) is first passed through
// encoding/json, so its json tags decide the field names.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		encodeString(buf, val)
		return nil
	case bool:
		buf.WriteString(strconv.FormatBool(val))
		return nil
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
		return nil
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
		return nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return fmt.Errorf("floats are forbidden in canonical JSON: %s", val)
		}
		buf.WriteString(strconv.FormatInt(n, 10))
		return nil
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	case []any:
		return encodeArray(buf, val)
	case map[string]any:
		return encodeObject(buf, val)
	default:
		generic, err := toGeneric(v)
		if err != nil {
			return err
		}
		return encode(buf, generic)
	}
}

// toGeneric round-trips v through encoding/json into plain maps and slices.
func toGeneric(v any) (any, error) {
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map) && rv.IsNil() {
		// A nil slice is an empty list, not null.
		if rv.Kind() == reflect.Slice {
			return []any{}, nil
		}
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T: %w", v, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %T: %w", v, err)
	}
	return out, nil
}

func encodeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(buf, elem); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodeString(buf, k)
		buf.WriteByte(':')
		if err := encode(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// encodeString writes s NFC normalized. Only the quote, the backslash and
// control characters are escaped; <, >, & and U+2028/U+2029 stay literal.
func encodeString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			fmt.Fprintf(buf, `\u%04x`, r)
		default:
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}

// compareUTF16 orders keys by UTF-16 code units. Plain string comparison
// orders by UTF-8 bytes, which differs for characters above U+FFFF.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
