package protocol

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var hexOnly = regexp.MustCompile(`\A[0-9a-fA-F]+\z`)

// Normalize turns the supported input forms into a byte sequence:
//
//	"02001701ff"          hex string
//	"\x02\x00\x17"        binary string (anything that is not pure hex)
//	[]string{"02", "00"}  hex byte strings
//	[]int{2, 0, 23}       integers in 0..255
//	[]byte{2, 0, 23}      raw bytes
//	Definition            catalogue entry
//
// Any other type, or a slice mixing forms, is an InvalidInputError.
func Normalize(input any) ([]byte, error) {
	switch v := input.(type) {
	case string:
		return parseByteString(v)
	case []byte:
		return append([]byte(nil), v...), nil
	case []string:
		return hexToBytes(strings.Join(v, ""))
	case []int:
		out := make([]byte, len(v))
		for i, n := range v {
			if n < 0 || n > 0xff {
				return nil, &InvalidInputError{Reason: fmt.Sprintf("value %d at index %d is not a byte", n, i)}
			}
			out[i] = byte(n)
		}
		return out, nil
	case []any:
		return normalizeMixed(v)
	case Definition:
		return append([]byte(nil), v.Bytes...), nil
	case *Definition:
		if v == nil {
			return nil, &InvalidInputError{Reason: "nil definition"}
		}
		return append([]byte(nil), v.Bytes...), nil
	default:
		return nil, &InvalidInputError{Reason: fmt.Sprintf("unsupported type %T", input)}
	}
}

func parseByteString(s string) ([]byte, error) {
	if s == "" {
		return nil, &InvalidInputError{Reason: "empty string"}
	}
	if hexOnly.MatchString(s) {
		return hexToBytes(s)
	}
	return []byte(s), nil
}

func hexToBytes(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, &InvalidInputError{Reason: fmt.Sprintf("malformed hex %q", s)}
	}
	return b, nil
}

// normalizeMixed accepts a []any only when every element has the same form.
func normalizeMixed(items []any) ([]byte, error) {
	if len(items) == 0 {
		return []byte{}, nil
	}
	switch items[0].(type) {
	case string:
		strs := make([]string, len(items))
		for i, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, &InvalidInputError{Reason: "array must contain integers or hex-encoded strings"}
			}
			strs[i] = s
		}
		return Normalize(strs)
	case int:
		ints := make([]int, len(items))
		for i, it := range items {
			n, ok := it.(int)
			if !ok {
				return nil, &InvalidInputError{Reason: "array must contain integers or hex-encoded strings"}
			}
			ints[i] = n
		}
		return Normalize(ints)
	default:
		return nil, &InvalidInputError{Reason: fmt.Sprintf("unsupported element type %T", items[0])}
	}
}
