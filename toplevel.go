package refedit

import "strings"

// findTopLevelField locates the first indent-0 "field: value" line for the
// given key. Section headers do not match unless the key itself names a
// value-less top-level field (block arrays share that shape).
func findTopLevelField(lines []line, field string) (int, bool) {
	for i, ln := range lines {
		if ln.indent != 0 {
			continue
		}
		switch ln.kind {
		case kindField, kindSectionHeader, kindPipeIndicator:
		default:
			continue
		}
		if ln.trimmed == field+":" || strings.HasPrefix(ln.trimmed, field+": ") {
			return i, true
		}
	}
	return 0, false
}

// topLevelInsertIndex returns the line index at which a new top-level field
// should be inserted: after the last top-level field preceding the first
// section header, keeping the document's leading scalar-field group
// contiguous. Documents with no leading fields insert at the top.
func topLevelInsertIndex(lines []line) int {
	idx := 0
	for i, ln := range lines {
		if ln.kind == kindPipeContent || ln.kind == kindBlank || ln.kind == kindComment {
			continue
		}
		if ln.indent != 0 {
			continue
		}
		if ln.kind == kindSectionHeader {
			break
		}
		if ln.kind == kindField || ln.kind == kindPipeIndicator {
			idx = i + 1
		}
	}
	return idx
}

// UpdateTopLevelField sets or replaces a top-level scalar field. Missing
// fields are inserted ahead of the first section.
func UpdateTopLevelField(doc, field string, value interface{}) (string, error) {
	return updateTopLevel(doc, field, value)
}

// UpdateOptionalTopLevelField sets a top-level field, or removes it when the
// value is empty or whitespace-only.
func UpdateOptionalTopLevelField(doc, field, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return updateTopLevel(doc, field, nil)
	}
	return updateTopLevel(doc, field, value)
}

// UpdateTopLevelStringArray writes a top-level string array in block form:
//
//	field:
//	  - first
//	  - second
//
// An empty values slice removes the field and its block.
func UpdateTopLevelStringArray(doc, field string, values []string) (string, error) {
	if len(values) == 0 {
		return updateTopLevel(doc, field, nil)
	}
	repl := make([]string, 0, len(values)+1)
	repl = append(repl, field+":")
	for _, v := range values {
		repl = append(repl, "  - "+renderScalar(v))
	}
	return spliceTopLevel(doc, field, repl)
}

func updateTopLevel(doc, field string, value interface{}) (string, error) {
	if value == nil {
		return spliceTopLevel(doc, field, nil)
	}
	if s, ok := value.(string); ok && strings.Contains(s, "\n") {
		return spliceTopLevel(doc, field, renderPipeBlock(0, field, s))
	}
	tok, err := scalarToken(value)
	if err != nil {
		return doc, err
	}
	return spliceTopLevel(doc, field, []string{field + ": " + tok})
}

// spliceTopLevel replaces or removes the field line plus its continuation
// span (pipe block or block array), or inserts repl when the field is
// absent. A nil repl with no existing field is a no-op.
func spliceTopLevel(doc, field string, repl []string) (string, error) {
	lines := scanLines(doc)
	idx, found := findTopLevelField(lines, field)

	var p linePatch
	switch {
	case found:
		p = linePatch{start: idx, end: continuationEnd(lines, idx, 0), repl: repl}
	case repl == nil:
		return doc, nil
	default:
		at := topLevelInsertIndex(lines)
		p = linePatch{start: at, end: at, repl: repl}
	}

	out, ok := applyLinePatches(lines, []linePatch{p})
	if !ok {
		return doc, nil
	}
	return NormalizeWhitespace(joinLines(out)), nil
}
