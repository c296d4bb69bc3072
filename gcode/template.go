package gcode

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrBadTemplate is returned when a command template has a malformed
// placeholder format.
var ErrBadTemplate = errors.New("bad command template")

// rxVar matches {Name} and {Name:Format}.
var rxVar = regexp.MustCompile(`\{(\w+)(?::(.+?))?\}`)

// Substitute will replace every {name} or {name:format} placeholder in
// tmpl with value. A nil value removes the placeholder entirely; this is
// how an axis is left out of a move. Placeholders for other names are left
// for a later pass.
//
// Format is a printf-style format with a single verb and defaults to %v.
// A verb that cannot print value, such as %d for a float, fails with
// ErrBadTemplate rather than leaking fmt's %!d(...) into the output.
func Substitute(tmpl, name string, value interface{}) (string, error) {
	if tmpl == "" {
		return tmpl, nil
	}

	matches := rxVar.FindAllStringSubmatchIndex(tmpl, -1)
	if len(matches) == 0 {
		return tmpl, nil
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		if tmpl[m[2]:m[3]] != name {
			continue
		}
		sb.WriteString(tmpl[last:m[0]])
		last = m[1]
		if value == nil {
			continue
		}
		format := "%v"
		if m[4] >= 0 {
			format = tmpl[m[4]:m[5]]
		}
		s, err := formatValue(format, value)
		if err != nil {
			return "", fmt.Errorf("%w: {%s}: %v", ErrBadTemplate, name, err)
		}
		sb.WriteString(s)
	}
	if last == 0 {
		return tmpl, nil
	}
	sb.WriteString(tmpl[last:])
	return sb.String(), nil
}

// Vars are placeholder values for Expand. A nil value removes its
// placeholder.
type Vars map[string]interface{}

// Expand substitutes every entry of vars into tmpl.
func Expand(tmpl string, vars Vars) (string, error) {
	var err error
	for name, value := range vars {
		tmpl, err = Substitute(tmpl, name, value)
		if err != nil {
			return "", err
		}
	}
	return tmpl, nil
}

func formatValue(format string, value interface{}) (string, error) {
	verbs, err := formatVerbs(format)
	if err != nil {
		return "", err
	}
	if len(verbs) != 1 {
		return "", fmt.Errorf("format %q must have exactly one verb", format)
	}

	str, isString := value.(string)
	switch {
	case verbs[0] == 's' && !isString:
		// %s on a number should print the number, not %!s(float64=...)
		value = fmt.Sprint(value)
	case isString && strings.IndexByte("svqxX", verbs[0]) >= 0:
		// the text itself may hold a '%'
		return fmt.Sprintf(format, str), nil
	}

	out := fmt.Sprintf(format, value)
	if strings.Contains(out, "%!"+string(verbs[0])+"(") {
		return "", fmt.Errorf("format %q cannot print %T %v", format, value, value)
	}
	return out, nil
}

// Placeholders returns the placeholder names referenced by tmpl, in order
// of first appearance.
func Placeholders(tmpl string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range rxVar.FindAllStringSubmatch(tmpl, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

// ValidateTemplate checks that every placeholder format in tmpl has
// exactly one known verb.
func ValidateTemplate(tmpl string) error {
	for _, m := range rxVar.FindAllStringSubmatch(tmpl, -1) {
		if m[2] == "" {
			continue
		}
		verbs, err := formatVerbs(m[2])
		if err != nil {
			return fmt.Errorf("%w: {%s}: %v", ErrBadTemplate, m[1], err)
		}
		if len(verbs) != 1 {
			return fmt.Errorf("%w: {%s}: format %q must have exactly one verb", ErrBadTemplate, m[1], m[2])
		}
	}
	return nil
}

const knownVerbs = "vtbcdoxXeEfFgGsq"

func formatVerbs(format string) ([]byte, error) {
	var verbs []byte
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		// flags, width and precision
		for i < len(format) && strings.IndexByte("+-# 0123456789.", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			return nil, fmt.Errorf("format %q ends without a verb", format)
		}
		if format[i] == '%' {
			continue
		}
		if strings.IndexByte(knownVerbs, format[i]) < 0 {
			return nil, fmt.Errorf("unknown verb %%%c in %q", format[i], format)
		}
		verbs = append(verbs, format[i])
	}
	return verbs, nil
}
