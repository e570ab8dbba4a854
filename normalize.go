package refedit

import "strings"

// NormalizeWhitespace enforces the document's blank-line conventions:
// exactly one blank line before each section header (and before a top-level
// comment run that introduces one), exactly one between sibling items, none
// inside an item's body or between top-level scalar fields. Block-scalar
// interiors pass through untouched except that the trailing blank run of a
// block collapses into the ordinary gap. The pass is idempotent and is the
// final step of every mutating operation.
func NormalizeWhitespace(doc string) string {
	lines := scanLines(doc)

	var out []string
	pending := 0     // blank lines seen since the last emitted content line
	havePrev := false
	var prev line
	itemIndent := 0 // indent of the current section's item starts

	for i, ln := range lines {
		switch ln.kind {
		case kindBlank:
			pending++
			continue
		case kindPipeContent:
			// Interior of a block scalar: verbatim, including its blanks.
			out = append(out, ln.raw)
			continue
		}

		gap := 0
		if havePrev {
			gap = desiredGap(lines, i, ln, prev, pending, itemIndent)
		}
		for ; gap > 0; gap-- {
			out = append(out, "")
		}
		out = append(out, ln.raw)

		if ln.kind == kindItemStart {
			itemIndent = ln.indent
		}
		if ln.kind == kindSectionHeader {
			itemIndent = 0
		}
		prev = ln
		havePrev = true
		pending = 0
	}

	// Drop leading and trailing blank runs; end with one final newline.
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n") + "\n"
}

// desiredGap decides the blank-line count between the previously emitted
// content line and the current one. Decisions depend on line classes only,
// which is what makes the pass idempotent.
func desiredGap(lines []line, i int, cur, prev line, pending, itemIndent int) int {
	switch cur.kind {
	case kindSectionHeader:
		if prev.kind == kindComment && prev.indent == 0 {
			return 0
		}
		if prev.kind == kindField && prev.indent == 0 {
			return capGap(pending)
		}
		return 1

	case kindComment:
		if cur.indent == 0 {
			if commentIntroducesSection(lines, i) {
				if prev.kind == kindComment {
					return 0
				}
				if prev.kind == kindField && prev.indent == 0 {
					return capGap(pending)
				}
				return 1
			}
			return capGap(pending)
		}
		// Indented comment: a run at the items' indent introduces the next
		// item, so it takes the inter-item blank; deeper comments sit inside
		// the current item's body.
		if prev.kind == kindComment || prev.kind == kindSectionHeader {
			return 0
		}
		if itemIndent != 0 && cur.indent <= itemIndent {
			return 1
		}
		return 0

	case kindItemStart:
		switch prev.kind {
		case kindSectionHeader, kindComment:
			return 0
		}
		return 1

	default:
		// Fields, pipe indicators, top-level scalar fields: packed tight.
		return 0
	}
}

func capGap(pending int) int {
	if pending > 1 {
		return 1
	}
	return pending
}
