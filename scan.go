package refedit

import (
	"sort"
	"strings"
)

// lineKind classifies one physical line of the document. Classification is
// contextual: whether a line is pipe content depends on the scanner state at
// the time the line is reached, not on the line's own bytes.
type lineKind int

const (
	kindBlank lineKind = iota
	kindSectionHeader
	kindItemStart
	kindField
	kindComment
	kindPipeIndicator
	kindPipeContent
)

// line is one immutable record of the scanned document. raw carries the
// original bytes without the trailing newline; untouched lines are emitted
// back verbatim.
type line struct {
	raw     string
	trimmed string
	indent  int
	kind    lineKind
}

// scanState is the explicit block-scalar state machine threaded through
// classification.
type scanState int

const (
	scanNormal scanState = iota
	scanBlockScalar
)

const emptyArrayMarker = "[]"

// scanLines splits text into classified line records. The final empty chunk
// produced by a trailing newline is kept as a blank line; the normalizer owns
// the document's final-newline policy.
func scanLines(doc string) []line {
	rawLines := strings.Split(doc, "\n")
	lines := make([]line, len(rawLines))

	state := scanNormal
	blockIndent := 0 // indent of the pipe-indicator line while in a block

	for i, raw := range rawLines {
		trimmed := strings.TrimSpace(raw)
		indent := leadingSpaces(raw)
		ln := line{raw: raw, trimmed: trimmed, indent: indent}

		if state == scanBlockScalar {
			if trimmed == "" || indent > blockIndent {
				ln.kind = kindPipeContent
				lines[i] = ln
				continue
			}
			// First non-blank line at or below the indicator's indent ends
			// the block. The trailing blank run belongs to the gap after the
			// block, not to the block itself; re-mark it.
			state = scanNormal
			for j := i - 1; j >= 0 && lines[j].trimmed == ""; j-- {
				lines[j].kind = kindBlank
			}
		}

		ln.kind = classifyLine(trimmed, indent)
		if ln.kind == kindPipeIndicator {
			state = scanBlockScalar
			blockIndent = indent
		}
		lines[i] = ln
	}

	// A block scalar running to EOF: trailing blanks are still gap.
	if state == scanBlockScalar {
		for j := len(lines) - 1; j >= 0 && lines[j].trimmed == ""; j-- {
			lines[j].kind = kindBlank
		}
	}
	return lines
}

func classifyLine(trimmed string, indent int) lineKind {
	switch {
	case trimmed == "":
		return kindBlank
	case strings.HasPrefix(trimmed, "#"):
		return kindComment
	case strings.HasPrefix(trimmed, "- ref:"):
		return kindItemStart
	}
	if isPipeIndicator(trimmed) {
		return kindPipeIndicator
	}
	if indent == 0 && isSectionHeaderContent(trimmed) {
		return kindSectionHeader
	}
	return kindField
}

// isSectionHeaderContent reports whether trimmed looks like "<name>:" with no
// value, or "<name>: []". A top-level key with a scalar value is a field.
func isSectionHeaderContent(trimmed string) bool {
	colon := strings.Index(trimmed, ":")
	if colon <= 0 {
		return false
	}
	rest := strings.TrimSpace(trimmed[colon+1:])
	return rest == "" || rest == emptyArrayMarker
}

func isPipeIndicator(trimmed string) bool {
	return strings.HasSuffix(trimmed, ": |") ||
		strings.HasSuffix(trimmed, ": |-") ||
		strings.HasSuffix(trimmed, ": |+")
}

func leadingSpaces(s string) int {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	return i
}

// fieldName returns the key of a field-shaped line ("" when the line has no
// colon). The leading sequence dash of an item-start line is stripped first.
func fieldName(trimmed string) string {
	t := strings.TrimPrefix(trimmed, "- ")
	colon := strings.Index(t, ":")
	if colon <= 0 {
		return ""
	}
	return t[:colon]
}

// fieldValue returns the raw value text after the colon, trimmed.
func fieldValue(trimmed string) string {
	t := strings.TrimPrefix(trimmed, "- ")
	colon := strings.Index(t, ":")
	if colon < 0 {
		return ""
	}
	return strings.TrimSpace(t[colon+1:])
}

// unquoteToken strips one layer of matching quotes from a scalar token and
// undoes the escapes renderScalar applies. Bare tokens pass through.
func unquoteToken(tok string) string {
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
		inner := tok[1 : len(tok)-1]
		inner = strings.ReplaceAll(inner, `\"`, `"`)
		inner = strings.ReplaceAll(inner, `\\`, `\`)
		return inner
	}
	if len(tok) >= 2 && tok[0] == '\'' && tok[len(tok)-1] == '\'' {
		return strings.ReplaceAll(tok[1:len(tok)-1], "''", "'")
	}
	return tok
}

// splitInlineElems splits the interior of an inline array on the commas that
// sit outside quoted tokens, so a quoted element may itself contain commas.
func splitInlineElems(inner string) []string {
	var parts []string
	start := 0
	quote := byte(0)
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case quote == '"':
			if c == '\\' {
				i++
			} else if c == '"' {
				quote = 0
			}
		case quote == '\'':
			if c == '\'' {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ',':
			parts = append(parts, inner[start:i])
			start = i + 1
		}
	}
	return append(parts, inner[start:])
}

// ----- line splicing -----

// linePatch replaces the half-open line range [start, end) with repl.
// Insertions use start == end.
type linePatch struct {
	start int
	end   int
	repl  []string
	seq   int // stable order for equal start
}

// applyLinePatches rebuilds the raw line slice with all patches applied.
// Overlapping destructive ranges indicate a bug in the caller; the splice is
// abandoned and ok is false so the operation can return its input unchanged.
func applyLinePatches(lines []line, patches []linePatch) ([]string, bool) {
	sort.SliceStable(patches, func(i, j int) bool {
		if patches[i].start == patches[j].start {
			if patches[i].end == patches[j].end {
				return patches[i].seq < patches[j].seq
			}
			return patches[i].end < patches[j].end
		}
		return patches[i].start < patches[j].start
	})
	for i := 1; i < len(patches); i++ {
		prev, cur := patches[i-1], patches[i]
		if prev.end > cur.start {
			if !(prev.start == prev.end && cur.start == cur.end && prev.start == cur.start) {
				return nil, false
			}
		}
	}

	out := make([]string, 0, len(lines))
	cursor := 0
	for _, p := range patches {
		if p.start < cursor || p.end < p.start || p.end > len(lines) {
			return nil, false
		}
		for ; cursor < p.start; cursor++ {
			out = append(out, lines[cursor].raw)
		}
		out = append(out, p.repl...)
		cursor = p.end
	}
	for ; cursor < len(lines); cursor++ {
		out = append(out, lines[cursor].raw)
	}
	return out, true
}

func joinLines(raw []string) string {
	return strings.Join(raw, "\n")
}
