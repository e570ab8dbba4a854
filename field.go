package refedit

// fieldLoc describes a located field line inside an item.
type fieldLoc struct {
	index  int
	indent int
	value  string // raw value text after the colon, trimmed
	isPipe bool
}

// findField locates a named field inside the item's range. A field line only
// counts when it sits at the item's detected field indent; lines indented
// differently are treated as outside the item. The ref line itself is
// addressable as the field "ref".
func findField(lines []line, it item, name string) (fieldLoc, bool) {
	if name == "ref" {
		ln := lines[it.start]
		return fieldLoc{index: it.start, indent: it.indent + 2, value: fieldValue(ln.trimmed)}, true
	}
	for i := it.start + 1; i <= it.end; i++ {
		ln := lines[i]
		switch ln.kind {
		case kindField, kindPipeIndicator:
		default:
			continue
		}
		if it.fieldIndent != 0 && ln.indent != it.fieldIndent {
			continue
		}
		if it.fieldIndent == 0 && ln.indent <= it.indent {
			continue
		}
		if fieldName(ln.trimmed) != name {
			continue
		}
		return fieldLoc{
			index:  i,
			indent: ln.indent,
			value:  fieldValue(ln.trimmed),
			isPipe: ln.kind == kindPipeIndicator,
		}, true
	}
	return fieldLoc{}, false
}

// continuationEnd returns the exclusive end of the value lines following a
// field: pipe-block content or multi-line array entries. A continuation
// line is blank or indented deeper than the field; the first non-blank line
// at or below the field's indent terminates the span.
func continuationEnd(lines []line, fieldIdx, fieldIndent int) int {
	i := fieldIdx + 1
	for ; i < len(lines); i++ {
		ln := lines[i]
		if ln.trimmed == "" {
			continue
		}
		if ln.indent > fieldIndent {
			continue
		}
		break
	}
	// Back off over the trailing blank run so it stays with the gap.
	for i > fieldIdx+1 && lines[i-1].trimmed == "" {
		i--
	}
	return i
}

// UpdateField sets, replaces, or removes one field of the item identified by
// (section, ref). A nil value or an empty array removes the field and any
// continuation lines it owned. When the section or item cannot be located
// the document is returned unchanged.
func UpdateField(doc, sectionName, ref, field string, value interface{}) (string, error) {
	lines := scanLines(doc)
	sec, ok := findSection(lines, sectionName)
	if !ok {
		return doc, nil
	}
	it, ok := findItem(lines, sec, ref)
	if !ok {
		return doc, nil
	}

	var patches []linePatch
	loc, found := findField(lines, it, field)

	switch {
	case isEmptyValue(value):
		if !found || field == "ref" {
			return doc, nil
		}
		end := continuationEnd(lines, loc.index, loc.indent)
		patches = append(patches, linePatch{start: loc.index, end: end})

	case found:
		if field == "ref" {
			// The ref lives on the item-start line; keep the dash.
			repl, err := renderFieldLines(it.indent, "- ref", value)
			if err != nil {
				return doc, err
			}
			patches = append(patches, linePatch{start: loc.index, end: loc.index + 1, repl: repl})
			break
		}
		repl, err := renderFieldLines(loc.indent, field, value)
		if err != nil {
			return doc, err
		}
		end := continuationEnd(lines, loc.index, loc.indent)
		patches = append(patches, linePatch{start: loc.index, end: end, repl: repl})

	default:
		indent := it.fieldIndent
		if indent == 0 {
			indent = it.indent + 4
		}
		repl, err := renderFieldLines(indent, field, value)
		if err != nil {
			return doc, err
		}
		patches = append(patches, linePatch{start: it.end + 1, end: it.end + 1, repl: repl})
	}

	out, ok := applyLinePatches(lines, patches)
	if !ok {
		return doc, nil
	}
	return NormalizeWhitespace(joinLines(out)), nil
}
