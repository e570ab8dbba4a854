package refedit

// ReorderSection reassembles a section's items in the given ref order. Each
// item travels as a verbatim block, block scalars and all, together with the
// comment run introducing it. Refs in newOrder with no matching block are
// skipped; existing blocks absent from newOrder are dropped. An unknown
// section or one with no items is a no-op.
func ReorderSection(doc, sectionName string, newOrder []string) (string, error) {
	lines := scanLines(doc)
	sec, ok := findSection(lines, sectionName)
	if !ok || sec.marker {
		return doc, nil
	}
	items := sectionItems(lines, sec)
	if len(items) == 0 {
		return doc, nil
	}

	// Extract each block verbatim, keyed by ref. The block starts at the
	// item's introducing comment run, consistent with RemoveItem's rule
	// that such comments belong to the item that follows.
	blocks := make(map[string][]string, len(items))
	for _, it := range items {
		start := it.start
		for start > sec.start+1 {
			prev := lines[start-1]
			if prev.kind != kindComment || prev.indent <= sec.indent || prev.indent > it.indent {
				break
			}
			start--
		}
		block := make([]string, 0, it.end-start+1)
		for i := start; i <= it.end; i++ {
			block = append(block, lines[i].raw)
		}
		if _, dup := blocks[it.ref]; !dup {
			blocks[it.ref] = block
		}
	}

	var body []string
	for _, ref := range newOrder {
		block, ok := blocks[ref]
		if !ok {
			continue
		}
		if len(body) > 0 {
			body = append(body, "")
		}
		body = append(body, block...)
	}

	end := sectionEnd(lines, sec)
	patch := linePatch{start: sec.start + 1, end: end, repl: body}
	if len(body) == 0 {
		// Every block was dropped: a section is never a bare header.
		patch.start = sec.start
		patch.repl = []string{sectionName + ": " + emptyArrayMarker}
	}
	out, ok := applyLinePatches(lines, []linePatch{patch})
	if !ok {
		return doc, nil
	}
	return NormalizeWhitespace(joinLines(out)), nil
}
