package refedit

import "strings"

// section describes a located top-level section header.
type section struct {
	start  int // header line index
	indent int
	marker bool // header is the "name: []" form
}

// findSection scans for the first top-level line whose key is name. Only
// indent-0 lines qualify: an item field such as "assets: [x]" occurring
// before the assets section must not shadow it.
func findSection(lines []line, name string) (section, bool) {
	for i, ln := range lines {
		if ln.indent != 0 {
			continue
		}
		switch ln.kind {
		case kindSectionHeader, kindField:
		default:
			continue
		}
		if ln.trimmed == name+":" || strings.HasPrefix(ln.trimmed, name+": ") {
			return section{
				start:  i,
				indent: ln.indent,
				marker: ln.trimmed == name+": "+emptyArrayMarker,
			}, true
		}
	}
	return section{}, false
}

// sectionEnd returns the exclusive end of the section starting at sec.start.
// The section runs until the next top-level key. A run of top-level comments
// directly ahead of the next section belongs to that section, verified by
// look-ahead, so it is excluded here too.
func sectionEnd(lines []line, sec section) int {
	for i := sec.start + 1; i < len(lines); i++ {
		ln := lines[i]
		switch ln.kind {
		case kindBlank, kindPipeContent:
			continue
		case kindComment:
			if ln.indent <= sec.indent && commentIntroducesSection(lines, i) {
				return i
			}
			continue
		}
		if ln.indent <= sec.indent && !strings.HasPrefix(ln.trimmed, "-") {
			return i
		}
	}
	return len(lines)
}

// commentIntroducesSection reports whether the comment at index i heads a
// contiguous top-level comment run whose next content line is a section
// header. Such a run semantically belongs to the following section.
func commentIntroducesSection(lines []line, i int) bool {
	for j := i; j < len(lines); j++ {
		ln := lines[j]
		switch ln.kind {
		case kindComment:
			if ln.indent > 0 {
				return false
			}
		case kindSectionHeader:
			return true
		default:
			return false
		}
	}
	return false
}

// item describes a located item's line range within its section. The range
// is inclusive and covers block scalars, multi-line arrays, and interior
// comments. fieldIndent is 0 until a simple field has been observed.
type item struct {
	start       int
	end         int
	indent      int
	fieldIndent int
	ref         string
}

// findItem walks a section for the item whose ref equals ref. The two-phase
// end detection matters: an item's body may contain block-scalar lines at
// arbitrary indents (including blanks), so the item runs to the next sibling
// item start or the section boundary, whichever comes first, rather than to
// the first dedent.
func findItem(lines []line, sec section, ref string) (item, bool) {
	for _, it := range sectionItems(lines, sec) {
		if it.ref == ref {
			return it, true
		}
	}
	return item{}, false
}

// sectionItems returns every item block in the section, in document order.
func sectionItems(lines []line, sec section) []item {
	end := sectionEnd(lines, sec)
	var items []item
	var cur *item

	flush := func(boundary int, nextIsItem bool) {
		if cur == nil {
			return
		}
		last := boundary - 1
		// A comment run sitting directly above the next item start introduces
		// that item, not this one, so it stays outside this block's range.
		if nextIsItem {
			for last > cur.start && lines[last].kind == kindComment &&
				lines[last].indent > sec.indent && lines[last].indent <= cur.indent {
				last--
			}
		}
		// Trim trailing blanks so the block ends on content.
		for last > cur.start && lines[last].kind == kindBlank {
			last--
		}
		cur.end = last
		items = append(items, *cur)
		cur = nil
	}

	for i := sec.start + 1; i < end; i++ {
		ln := lines[i]
		if ln.kind == kindItemStart {
			flush(i, true)
			cur = &item{start: i, indent: ln.indent, ref: itemStartRef(ln.trimmed)}
			continue
		}
		if cur == nil {
			continue
		}
		// Field indent is detected empirically from the first simple field
		// line inside the item.
		if cur.fieldIndent == 0 && ln.indent > cur.indent && !strings.HasPrefix(ln.trimmed, "-") {
			switch ln.kind {
			case kindField, kindPipeIndicator:
				cur.fieldIndent = ln.indent
			}
		}
	}
	flush(end, false)
	return items
}

// itemStartRef extracts the ref value from a "- ref: <value>" line,
// stripping optional quotes.
func itemStartRef(trimmed string) string {
	return unquoteToken(strings.TrimSpace(strings.TrimPrefix(trimmed, "- ref:")))
}

// documentRefs collects every item ref in the document, in order.
func documentRefs(lines []line) []string {
	var refs []string
	for _, ln := range lines {
		if ln.kind == kindItemStart {
			refs = append(refs, itemStartRef(ln.trimmed))
		}
	}
	return refs
}

// refExists reports whether ref is some item's own ref.
func refExists(lines []line, ref string) bool {
	for _, r := range documentRefs(lines) {
		if r == ref {
			return true
		}
	}
	return false
}
