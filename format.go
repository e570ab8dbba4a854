package refedit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Words that would parse as something other than a string when left bare.
// The comparison is case-sensitive: "True" stays bare.
var bareDisallowed = map[string]struct{}{
	"true": {}, "false": {}, "null": {}, "yes": {}, "no": {},
}

const quoteTriggers = "{[]&*!|>'\"%@`"

// needsQuoting reports whether a scalar string must be double-quoted to
// survive a YAML round trip under this dialect's rules.
func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	if _, bad := bareDisallowed[s]; bad {
		return true
	}
	if strings.ContainsAny(s, ":#") {
		return true
	}
	if s[0] == ' ' || s[len(s)-1] == ' ' {
		return true
	}
	return strings.ContainsRune(quoteTriggers, rune(s[0]))
}

var scalarEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// renderScalar renders a single-line string token, quoting when required.
// Multi-line strings never reach here; they render as pipe blocks.
func renderScalar(s string) string {
	if needsQuoting(s) {
		return `"` + scalarEscaper.Replace(s) + `"`
	}
	return s
}

// renderInlineArray renders a non-empty array as [a, b, c]. Arrays are
// always written inline regardless of how the original was formatted.
func renderInlineArray(elems []string) string {
	toks := make([]string, len(elems))
	for i, e := range elems {
		tok := renderScalar(e)
		// A bare comma would split the element on the next parse.
		if tok == e && strings.Contains(e, ",") {
			tok = `"` + scalarEscaper.Replace(e) + `"`
		}
		toks[i] = tok
	}
	return "[" + strings.Join(toks, ", ") + "]"
}

// scalarToken converts a supported scalar value to its written token.
// Numbers are rounded to the nearest integer.
func scalarToken(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return renderScalar(t), nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case int:
		return strconv.Itoa(t), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(t), nil
	case float32:
		return strconv.FormatInt(int64(math.Round(float64(t))), 10), nil
	case float64:
		return strconv.FormatInt(int64(math.Round(t)), 10), nil
	default:
		return "", fmt.Errorf("refedit: unsupported scalar type %T", v)
	}
}

// arrayElems normalizes a supported array value to its element strings.
// Non-array values return ok == false.
func arrayElems(v interface{}) ([]string, bool, error) {
	switch t := v.(type) {
	case []string:
		return t, true, nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
				continue
			}
			tok, err := scalarToken(e)
			if err != nil {
				return nil, true, err
			}
			out = append(out, tok)
		}
		return out, true, nil
	default:
		return nil, false, nil
	}
}

// renderFieldLines renders "name: value" at the given indent. Strings with
// embedded newlines become a pipe block whose content sits two spaces deeper
// than the field; non-empty arrays render inline; nil and empty arrays
// render nothing (the caller omits or removes the field).
func renderFieldLines(indent int, name string, value interface{}) ([]string, error) {
	if value == nil {
		return nil, nil
	}
	pad := strings.Repeat(" ", indent)

	if elems, isArr, err := arrayElems(value); isArr {
		if err != nil {
			return nil, err
		}
		if len(elems) == 0 {
			return nil, nil
		}
		return []string{pad + name + ": " + renderInlineArray(elems)}, nil
	}

	if s, ok := value.(string); ok && strings.Contains(s, "\n") {
		return renderPipeBlock(indent, name, s), nil
	}

	tok, err := scalarToken(value)
	if err != nil {
		return nil, err
	}
	return []string{pad + name + ": " + tok}, nil
}

func renderPipeBlock(indent int, name, content string) []string {
	pad := strings.Repeat(" ", indent)
	bodyPad := strings.Repeat(" ", indent+2)
	out := []string{pad + name + ": |"}
	body := strings.Split(content, "\n")
	// A trailing newline in the value adds an empty final chunk; the block's
	// own newline already covers it.
	if len(body) > 0 && body[len(body)-1] == "" {
		body = body[:len(body)-1]
	}
	for _, b := range body {
		if b == "" {
			out = append(out, "")
			continue
		}
		out = append(out, bodyPad+b)
	}
	return out
}

// isEmptyValue reports whether value means "remove the field": nil or an
// empty array.
func isEmptyValue(value interface{}) bool {
	if value == nil {
		return true
	}
	if elems, isArr, err := arrayElems(value); isArr && err == nil {
		return len(elems) == 0
	}
	return false
}
