package refedit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrRefNotFound reports a rename whose old ref is no item's own ref.
// Silently no-op-ing a rename would leave callers believing it succeeded,
// so this is the one operation that fails on a missing target.
var ErrRefNotFound = errors.New("refedit: ref not found")

// RenameOptions steers RenameRef. The zero value gives the default
// behavior: the old ref must exist and the new ref is uniqued with a
// numeric suffix when taken.
type RenameOptions struct {
	// ArrayFields names the fields whose inline or multi-line array
	// elements are rewritten on an exact match.
	ArrayFields []string
	// ScalarFields names the fields whose scalar value is rewritten on an
	// exact match.
	ScalarFields []string
	// RegenerateCompositeRefs recomputes the ref of every item carrying
	// source and target endpoint fields after the rename, keeping
	// connection identifiers consistent with their endpoints.
	RegenerateCompositeRefs bool
	// AllowMissing proceeds even when oldRef is no item's own ref, which
	// supports renaming dangling or derived identifiers.
	AllowMissing bool
	// SkipUniqueCheck disables the numeric-suffix probing of newRef.
	SkipUniqueCheck bool
}

// Endpoint fields a composite ref is synthesized from.
const (
	compositeSourceField    = "source"
	compositeTargetField    = "target"
	compositeDirectionField = "direction"
	directionTwoWay         = "two-way"
)

// compositeRef derives a relation item's identifier from its endpoints.
func compositeRef(source, target, direction string) string {
	if direction == directionTwoWay {
		return source + "<->" + target
	}
	return source + "->" + target
}

// RenameRef rewrites oldRef to newRef wherever it appears: as an item's own
// ref, as an exact element of the configured array fields (inline or
// multi-line form), and as the exact value of the configured scalar fields.
// Matching is always against the fully delimited token, never a substring,
// so refs sharing a prefix are safe. The second return is the ref actually
// written, which differs from newRef when uniqueness suffixing kicked in.
func RenameRef(doc, oldRef, newRef string, opts RenameOptions) (string, string, error) {
	if oldRef == newRef {
		return doc, newRef, nil
	}
	lines := scanLines(doc)

	if !opts.AllowMissing && !refExists(lines, oldRef) {
		return doc, "", fmt.Errorf("refedit: rename %q: %w", oldRef, ErrRefNotFound)
	}

	actual := newRef
	if !opts.SkipUniqueCheck {
		actual = uniqueRef(lines, oldRef, newRef)
	}

	patches := renameOccurrences(lines, oldRef, actual, opts)
	if len(patches) == 0 {
		return doc, actual, nil
	}
	out, ok := applyLinePatches(lines, patches)
	if !ok {
		return doc, actual, nil
	}
	return NormalizeWhitespace(joinLines(out)), actual, nil
}

// uniqueRef probes newRef, newRef-1, newRef-2, ... until a candidate no
// other item uses. oldRef itself does not count as a collision.
func uniqueRef(lines []line, oldRef, newRef string) string {
	taken := map[string]struct{}{}
	for _, r := range documentRefs(lines) {
		if r != oldRef {
			taken[r] = struct{}{}
		}
	}
	candidate := newRef
	for n := 1; ; n++ {
		if _, used := taken[candidate]; !used {
			return candidate
		}
		candidate = newRef + "-" + strconv.Itoa(n)
	}
}

// renameOccurrences builds one line patch per rewritten line, covering the
// occurrence variants in turn: own definitions, inline array elements,
// multi-line array elements, scalar fields, and composite refs. The own-ref
// rewrite and the composite regeneration can land on the same line; the
// composite value wins because it is computed from the post-rename
// endpoints.
func renameOccurrences(lines []line, oldRef, newRef string, opts RenameOptions) []linePatch {
	arrayFields := fieldSet(opts.ArrayFields)
	scalarFields := fieldSet(opts.ScalarFields)

	byLine := map[int]linePatch{}
	seq := 0
	put := func(idx int, repl string) {
		byLine[idx] = linePatch{start: idx, end: idx + 1, repl: []string{repl}, seq: seq}
		seq++
	}

	multiArray := false   // inside the continuation of a configured array field
	multiIndent := 0
	for i, ln := range lines {
		if multiArray {
			if ln.kind == kindBlank {
				continue
			}
			if ln.indent > multiIndent && strings.HasPrefix(ln.trimmed, "- ") {
				elem := unquoteToken(strings.TrimSpace(ln.trimmed[2:]))
				if elem == oldRef {
					pad := strings.Repeat(" ", ln.indent)
					put(i, pad+"- "+renderScalar(newRef))
				}
				continue
			}
			multiArray = false
		}

		switch ln.kind {
		case kindItemStart:
			if itemStartRef(ln.trimmed) == oldRef {
				pad := strings.Repeat(" ", ln.indent)
				put(i, pad+"- ref: "+renderScalar(newRef))
			}
		case kindField:
			name := fieldName(ln.trimmed)
			value := fieldValue(ln.trimmed)
			if _, isArr := arrayFields[name]; isArr {
				if value == "" {
					multiArray = true
					multiIndent = ln.indent
					continue
				}
				if strings.HasPrefix(value, "[") {
					if repl, changed := renameInlineArray(value, oldRef, newRef); changed {
						pad := strings.Repeat(" ", ln.indent)
						put(i, pad+name+": "+repl)
					}
					continue
				}
			}
			if _, isScalar := scalarFields[name]; isScalar {
				if unquoteToken(value) == oldRef {
					pad := strings.Repeat(" ", ln.indent)
					put(i, pad+name+": "+renderScalar(newRef))
				}
			}
		}
	}

	if opts.RegenerateCompositeRefs {
		regenerateComposites(lines, oldRef, newRef, put)
	}

	patches := make([]linePatch, 0, len(byLine))
	for _, p := range byLine {
		patches = append(patches, p)
	}
	return patches
}

// renameInlineArray rewrites exact element matches inside "[a, b, c]".
// The whole array is re-rendered only when an element actually changed.
func renameInlineArray(value, oldRef, newRef string) (string, bool) {
	inner := strings.TrimSuffix(strings.TrimPrefix(value, "["), "]")
	if strings.TrimSpace(inner) == "" {
		return value, false
	}
	changed := false
	parts := splitInlineElems(inner)
	elems := make([]string, 0, len(parts))
	for _, p := range parts {
		elem := unquoteToken(strings.TrimSpace(p))
		if elem == oldRef {
			elem = newRef
			changed = true
		}
		elems = append(elems, elem)
	}
	if !changed {
		return value, false
	}
	return renderInlineArray(elems), true
}

// regenerateComposites recomputes the own ref of every item that carries
// both endpoint fields, from the endpoint values as they stand after the
// rename. Recomputation is unconditional for such items, whether one or
// both endpoints changed.
func regenerateComposites(lines []line, oldRef, newRef string, put func(int, string)) {
	for i, ln := range lines {
		if ln.indent != 0 || ln.kind != kindSectionHeader {
			continue
		}
		sec := section{start: i, indent: ln.indent, marker: strings.HasSuffix(ln.trimmed, ": "+emptyArrayMarker)}
		for _, it := range sectionItems(lines, sec) {
			src, okS := itemScalar(lines, it, compositeSourceField)
			tgt, okT := itemScalar(lines, it, compositeTargetField)
			if !okS || !okT || src == "" || tgt == "" {
				continue
			}
			if src == oldRef {
				src = newRef
			}
			if tgt == oldRef {
				tgt = newRef
			}
			dir, _ := itemScalar(lines, it, compositeDirectionField)
			pad := strings.Repeat(" ", it.indent)
			put(it.start, pad+"- ref: "+renderScalar(compositeRef(src, tgt, dir)))
		}
	}
}

func itemScalar(lines []line, it item, name string) (string, bool) {
	loc, ok := findField(lines, it, name)
	if !ok || loc.isPipe {
		return "", false
	}
	return unquoteToken(loc.value), true
}

func fieldSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

// ----- entity wrappers -----

// RenameComponent renames a component and cascades through group member
// lists, connection endpoints, and the composite connection refs derived
// from them.
func RenameComponent(doc, oldRef, newRef string) (string, string, error) {
	return RenameRef(doc, oldRef, newRef, RenameOptions{
		ArrayFields:             []string{"members"},
		ScalarFields:            []string{compositeSourceField, compositeTargetField},
		RegenerateCompositeRefs: true,
	})
}

// RenameAsset renames an asset and cascades through component asset lists.
func RenameAsset(doc, oldRef, newRef string) (string, string, error) {
	return RenameRef(doc, oldRef, newRef, RenameOptions{
		ArrayFields: []string{"assets"},
	})
}

// RenameGroup renames a group; nothing else references groups.
func RenameGroup(doc, oldRef, newRef string) (string, string, error) {
	return RenameRef(doc, oldRef, newRef, RenameOptions{})
}

// RenameConnection renames a connection by its (usually composite) ref.
func RenameConnection(doc, oldRef, newRef string) (string, string, error) {
	return RenameRef(doc, oldRef, newRef, RenameOptions{})
}

// RemoveRefFromArrayFields deletes every exact occurrence of ref from the
// named array fields across the whole document. A field whose array becomes
// empty is removed entirely.
func RemoveRefFromArrayFields(doc, ref string, fieldNames []string) (string, error) {
	fields := fieldSet(fieldNames)
	lines := scanLines(doc)

	var patches []linePatch
	seq := 0

	multiArray := false
	multiIndent := 0
	multiField := -1   // line index of the multi-line array's field line
	multiKept := 0     // elements kept so far in the current multi-line array
	var multiDrops []linePatch

	flushMulti := func() {
		if multiField >= 0 && multiKept == 0 && len(multiDrops) > 0 {
			patches = append(patches, linePatch{start: multiField, end: multiField + 1, seq: seq})
			seq++
		}
		patches = append(patches, multiDrops...)
		multiArray = false
		multiField = -1
		multiDrops = nil
	}

	for i, ln := range lines {
		if multiArray {
			if ln.kind == kindBlank {
				continue
			}
			if ln.indent > multiIndent && strings.HasPrefix(ln.trimmed, "- ") {
				elem := unquoteToken(strings.TrimSpace(ln.trimmed[2:]))
				if elem == ref {
					multiDrops = append(multiDrops, linePatch{start: i, end: i + 1, seq: seq})
					seq++
				} else {
					multiKept++
				}
				continue
			}
			flushMulti()
		}

		if ln.kind != kindField {
			continue
		}
		name := fieldName(ln.trimmed)
		if _, want := fields[name]; !want {
			continue
		}
		value := fieldValue(ln.trimmed)
		if value == "" {
			multiArray = true
			multiIndent = ln.indent
			multiField = i
			multiKept = 0
			continue
		}
		if !strings.HasPrefix(value, "[") {
			continue
		}
		elems, changed := dropInlineElement(value, ref)
		if !changed {
			continue
		}
		pad := strings.Repeat(" ", ln.indent)
		if len(elems) == 0 {
			patches = append(patches, linePatch{start: i, end: i + 1, seq: seq})
		} else {
			patches = append(patches, linePatch{
				start: i, end: i + 1, seq: seq,
				repl: []string{pad + name + ": " + renderInlineArray(elems)},
			})
		}
		seq++
	}
	if multiArray {
		flushMulti()
	}

	if len(patches) == 0 {
		return doc, nil
	}
	out, ok := applyLinePatches(lines, patches)
	if !ok {
		return doc, nil
	}
	return NormalizeWhitespace(joinLines(out)), nil
}

// dropInlineElement removes exact matches of ref from "[a, b, c]".
func dropInlineElement(value, ref string) ([]string, bool) {
	inner := strings.TrimSuffix(strings.TrimPrefix(value, "["), "]")
	if strings.TrimSpace(inner) == "" {
		return nil, false
	}
	changed := false
	var elems []string
	for _, p := range splitInlineElems(inner) {
		elem := unquoteToken(strings.TrimSpace(p))
		if elem == ref {
			changed = true
			continue
		}
		elems = append(elems, elem)
	}
	return elems, changed
}
