package refedit

import (
	"fmt"
	"strings"

	gyaml "github.com/goccy/go-yaml"
)

// renderItemBlock renders a complete item at the given item indent. The ref
// always comes first regardless of its position in fields; nil values and
// empty arrays are omitted.
func renderItemBlock(indent int, fields gyaml.MapSlice) ([]string, error) {
	ref := ""
	for _, f := range fields {
		if k, ok := f.Key.(string); ok && k == "ref" {
			if s, ok := f.Value.(string); ok {
				ref = s
			}
		}
	}
	if ref == "" {
		return nil, fmt.Errorf("refedit: render item: missing ref")
	}

	pad := strings.Repeat(" ", indent)
	out := []string{pad + "- ref: " + renderScalar(ref)}
	for _, f := range fields {
		k, ok := f.Key.(string)
		if !ok || k == "ref" {
			continue
		}
		rendered, err := renderFieldLines(indent+2, k, f.Value)
		if err != nil {
			return nil, fmt.Errorf("refedit: render item %q: field %q: %w", ref, k, err)
		}
		out = append(out, rendered...)
	}
	return out, nil
}

// AppendItem appends a new item block to a section. A "section: []" marker
// expands into the header plus the item; a missing section is created at the
// end of the document.
func AppendItem(doc, sectionName string, fields gyaml.MapSlice) (string, error) {
	lines := scanLines(doc)
	sec, found := findSection(lines, sectionName)

	itemIndent := 2
	if found {
		itemIndent = sec.indent + 2
		if items := sectionItems(lines, sec); len(items) > 0 {
			itemIndent = items[0].indent
		}
	}
	block, err := renderItemBlock(itemIndent, fields)
	if err != nil {
		return doc, err
	}

	var p linePatch
	switch {
	case found && sec.marker:
		repl := append([]string{sectionName + ":"}, block...)
		p = linePatch{start: sec.start, end: sec.start + 1, repl: repl}
	case found:
		items := sectionItems(lines, sec)
		if len(items) > 0 {
			at := items[len(items)-1].end + 1
			p = linePatch{start: at, end: at, repl: append([]string{""}, block...)}
			break
		}
		// Header exists with no marker and no items: insert directly below.
		at := sec.start + 1
		p = linePatch{start: at, end: at, repl: block}
	default:
		repl := append([]string{"", sectionName + ":"}, block...)
		at := len(lines)
		p = linePatch{start: at, end: at, repl: repl}
	}

	out, ok := applyLinePatches(lines, []linePatch{p})
	if !ok {
		return doc, nil
	}
	return NormalizeWhitespace(joinLines(out)), nil
}

// RemoveItem deletes the item's whole block, including block scalars,
// multi-line arrays, and the comment run introducing it. Removing the last
// item collapses the section to its "section: []" marker form.
func RemoveItem(doc, sectionName, ref string) (string, error) {
	lines := scanLines(doc)
	sec, ok := findSection(lines, sectionName)
	if !ok || sec.marker {
		return doc, nil
	}
	items := sectionItems(lines, sec)
	var target *item
	for i := range items {
		if items[i].ref == ref {
			target = &items[i]
			break
		}
	}
	if target == nil {
		return doc, nil
	}

	start := target.start
	// A contiguous comment run at the item's indent directly above the block
	// introduces this item and goes with it. Comments at or below the
	// section's own indent belong to whatever follows and stay.
	for start > sec.start+1 {
		prev := lines[start-1]
		if prev.kind != kindComment || prev.indent <= sec.indent || prev.indent > target.indent {
			break
		}
		start--
	}

	patches := []linePatch{{start: start, end: target.end + 1}}

	if len(items) == 1 {
		// Sole item: the header collapses to the marker and orphaned body
		// lines are swept. Sweeping stops at the first blank line (content
		// after it belongs to what follows) and at comments at or below the
		// section indent (they introduce the next section).
		patches[0].start = target.start
		patches = append(patches, linePatch{
			start: sec.start,
			end:   sec.start + 1,
			repl:  []string{sectionName + ": " + emptyArrayMarker},
		})
		for i := sec.start + 1; i < target.start; i++ {
			ln := lines[i]
			if ln.kind == kindBlank {
				break
			}
			if ln.kind == kindComment && ln.indent <= sec.indent {
				break
			}
			patches = append(patches, linePatch{start: i, end: i + 1})
		}
	}

	out, ok := applyLinePatches(lines, patches)
	if !ok {
		return doc, nil
	}
	return NormalizeWhitespace(joinLines(out)), nil
}
