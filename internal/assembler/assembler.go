// Package assembler joins template segments and interpolated values into YAML source.
package assembler

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	apperrors "github.com/k8stag/k8stag/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Assemble alternates segments[i] with the stringified values[i] and appends the
// final segment. A template with N values has N+1 literal segments.
//
// A value spanning several lines is fitted to the line it lands on: when the
// line holds only indentation (the body of a "|" block) every continuation line
// gets the same indentation, otherwise the value is written as one double-quoted
// scalar.
func Assemble(segments []string, values []any) (string, error) {
	if len(segments) == 0 {
		return "", apperrors.InvalidInput("template has no literal segments")
	}
	if len(values) != len(segments)-1 {
		return "", apperrors.InvalidInput("template has %d segments but %d values, want %d",
			len(segments), len(values), len(segments)-1)
	}

	var b strings.Builder
	for i, value := range values {
		b.WriteString(segments[i])
		s, isFlow, err := stringify(value)
		if err != nil {
			return "", apperrors.InvalidInput("value %d: %v", i, err)
		}
		b.WriteString(place(s, isFlow, currentLine(b.String())))
	}
	b.WriteString(segments[len(segments)-1])
	return b.String(), nil
}

// Stringify renders an interpolated value so that it survives concatenation into
// YAML source. Sequences and mappings are emitted in flow style, so they are safe
// at any indentation level.
func Stringify(value any) (string, error) {
	s, _, err := stringify(value)
	return s, err
}

func stringify(value any) (string, bool, error) {
	switch v := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, false, nil
	case []byte:
		return string(v), false, nil
	case fmt.Stringer:
		return v.String(), false, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "", false, nil
	}
	switch reflect.Indirect(rv).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		s, err := flow(value)
		return s, true, err
	default:
		return fmt.Sprint(value), false, nil
	}
}

// place fits a stringified value to the line it is appended to
func place(s string, isFlow bool, line string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	indent := indentOf(line)
	switch {
	case isFlow:
		// wrapped flow collections only need to sit deeper than their key
		indent += "  "
	case strings.TrimSpace(line) != "":
		return strconv.Quote(s)
	}

	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = indent + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

func currentLine(s string) string {
	return s[strings.LastIndexByte(s, '\n')+1:]
}

// flow encodes value as a YAML flow collection
func flow(value any) (string, error) {
	var node yaml.Node
	if err := node.Encode(value); err != nil {
		return "", fmt.Errorf("failed to encode %T: %w", value, err)
	}
	setFlowStyle(&node)

	out, err := yaml.Marshal(&node)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %T: %w", value, err)
	}
	return strings.TrimSuffix(string(out), "\n"), nil
}

func setFlowStyle(node *yaml.Node) {
	switch node.Kind {
	case yaml.SequenceNode, yaml.MappingNode:
		node.Style |= yaml.FlowStyle
	case yaml.ScalarNode:
		// multi-line scalars cannot live on one line in literal style
		if node.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
			node.Style = yaml.DoubleQuotedStyle
		}
	}
	for _, child := range node.Content {
		setFlowStyle(child)
	}
}

// Dedent removes the whitespace prefix shared by every non-blank line of s, so a
// manifest written inside indented Go code parses as top-level YAML. Tabs and
// spaces are compared literally.
func Dedent(s string) string {
	return DedentSegments([]string{s})[0]
}

// DedentSegments is Dedent over template segments before any value is joined in.
// Only lines that begin inside a segment count towards the shared prefix, so
// interpolated text never affects it. A segment's last line that is followed by
// a value counts even when it is only indentation.
func DedentSegments(segments []string) []string {
	split := make([][]string, len(segments))
	prefix := ""
	first := true
	for i, segment := range segments {
		split[i] = strings.Split(segment, "\n")
		for j, line := range split[i] {
			if (i > 0 && j == 0) || isBlank(line, i, j, segments, split[i]) {
				continue
			}
			if first {
				prefix = indentOf(line)
				first = false
				continue
			}
			prefix = commonPrefix(prefix, indentOf(line))
		}
	}

	out := make([]string, len(segments))
	for i, lines := range split {
		for j, line := range lines {
			if i > 0 && j == 0 {
				continue
			}
			if isBlank(line, i, j, segments, lines) {
				lines[j] = ""
				continue
			}
			lines[j] = strings.TrimPrefix(line, prefix)
		}
		out[i] = strings.Join(lines, "\n")
	}
	return out
}

// isBlank reports whether line j of segment i is empty in the assembled text
func isBlank(line string, i, j int, segments, lines []string) bool {
	holdsValue := i < len(segments)-1 && j == len(lines)-1
	return !holdsValue && strings.TrimSpace(line) == ""
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}
