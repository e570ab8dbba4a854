package refedit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	gyaml "github.com/goccy/go-yaml"
)

// JSON Patch (RFC-6902) adapter
// --------------------------------------------------------------------------------------
//
// Paths address the document by ref, not by array index:
//
//	/<field>                 top-level field
//	/<section>/<ref>         item
//	/<section>/<ref>/<field> item field
//
// Supported ops are add, replace, remove, and test. Replacing an item is
// remove followed by append, so the item lands at the end of its section.

// ApplyPatch applies a github.com/evanphx/json-patch/v5 Patch to the
// document. Internally this marshals the patch back to JSON and delegates
// to ApplyPatchBytes.
func ApplyPatch(doc string, patch jsonpatch.Patch) (string, error) {
	b, err := json.Marshal(patch)
	if err != nil {
		return doc, fmt.Errorf("refedit: cannot marshal jsonpatch.Patch; pass bytes instead: %w", err)
	}
	return ApplyPatchBytes(doc, b)
}

// ApplyPatchBytes applies a JSON Patch (as raw JSON) to the document and
// returns the edited text.
func ApplyPatchBytes(doc string, patchJSON []byte) (string, error) {
	ops, err := decodePatchOps(patchJSON)
	if err != nil {
		return doc, err
	}
	for _, op := range ops {
		doc, err = applyOp(doc, op)
		if err != nil {
			return doc, err
		}
	}
	return doc, nil
}

type patchOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
	From  string          `json:"from,omitempty"`
}

func decodePatchOps(b []byte) ([]patchOp, error) {
	var ops []patchOp
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ops); err != nil {
		return nil, fmt.Errorf("refedit: invalid JSON Patch: %w", err)
	}
	if len(ops) == 0 {
		return nil, errors.New("refedit: empty JSON Patch")
	}
	return ops, nil
}

func parseJSONPointer(p string) ([]string, error) {
	if !strings.HasPrefix(p, "/") {
		return nil, fmt.Errorf("refedit: JSON Pointer must start with '/': %q", p)
	}
	parts := strings.Split(p, "/")[1:]
	segs := make([]string, 0, len(parts))
	for _, s := range parts {
		segs = append(segs, strings.ReplaceAll(strings.ReplaceAll(s, "~1", "/"), "~0", "~"))
	}
	return segs, nil
}

func applyOp(doc string, op patchOp) (string, error) {
	segs, err := parseJSONPointer(op.Path)
	if err != nil {
		return doc, err
	}
	switch strings.ToLower(op.Op) {
	case "add", "replace":
		return opSet(doc, segs, op.Value, strings.ToLower(op.Op) == "replace")
	case "remove":
		return opRemove(doc, segs)
	case "test":
		return doc, opTest(doc, segs, op.Value)
	case "move", "copy":
		return doc, fmt.Errorf("refedit: unsupported op %q", op.Op)
	default:
		return doc, fmt.Errorf("refedit: unsupported op %q", op.Op)
	}
}

func opSet(doc string, segs []string, raw json.RawMessage, replace bool) (string, error) {
	switch len(segs) {
	case 1:
		v, err := decodeOrderedValue(raw)
		if err != nil {
			return doc, err
		}
		if elems, isArr, aerr := arrayElems(v); isArr {
			if aerr != nil {
				return doc, aerr
			}
			return UpdateTopLevelStringArray(doc, segs[0], elems)
		}
		return UpdateTopLevelField(doc, segs[0], v)

	case 2:
		fields, err := decodeItemFields(raw)
		if err != nil {
			return doc, err
		}
		fields = ensureRefField(fields, segs[1])
		if replace {
			removed, err := RemoveItem(doc, segs[0], segs[1])
			if err != nil {
				return doc, err
			}
			doc = removed
		}
		return AppendItem(doc, segs[0], fields)

	case 3:
		v, err := decodeOrderedValue(raw)
		if err != nil {
			return doc, err
		}
		return UpdateField(doc, segs[0], segs[1], segs[2], v)

	default:
		return doc, fmt.Errorf("refedit: unsupported path depth %d", len(segs))
	}
}

func opRemove(doc string, segs []string) (string, error) {
	switch len(segs) {
	case 1:
		return UpdateOptionalTopLevelField(doc, segs[0], "")
	case 2:
		return RemoveItem(doc, segs[0], segs[1])
	case 3:
		return UpdateField(doc, segs[0], segs[1], segs[2], nil)
	default:
		return doc, fmt.Errorf("refedit: unsupported path depth %d", len(segs))
	}
}

// opTest compares a scalar at the addressed position, or checks existence of
// an item when the path stops at /<section>/<ref>.
func opTest(doc string, segs []string, raw json.RawMessage) error {
	lines := scanLines(doc)
	switch len(segs) {
	case 1:
		idx, found := findTopLevelField(lines, segs[0])
		if !found {
			return fmt.Errorf("refedit: test failed: field %q not found", segs[0])
		}
		return testScalar(fieldValue(lines[idx].trimmed), raw)

	case 2:
		sec, ok := findSection(lines, segs[0])
		if !ok {
			return fmt.Errorf("refedit: test failed: section %q not found", segs[0])
		}
		if _, ok := findItem(lines, sec, segs[1]); !ok {
			return fmt.Errorf("refedit: test failed: item %q not found in %q", segs[1], segs[0])
		}
		return nil

	case 3:
		sec, ok := findSection(lines, segs[0])
		if !ok {
			return fmt.Errorf("refedit: test failed: section %q not found", segs[0])
		}
		it, ok := findItem(lines, sec, segs[1])
		if !ok {
			return fmt.Errorf("refedit: test failed: item %q not found in %q", segs[1], segs[0])
		}
		loc, ok := findField(lines, it, segs[2])
		if !ok {
			return fmt.Errorf("refedit: test failed: field %q not found on %q", segs[2], segs[1])
		}
		return testScalar(loc.value, raw)

	default:
		return fmt.Errorf("refedit: unsupported path depth %d", len(segs))
	}
}

func testScalar(rawValue string, expected json.RawMessage) error {
	v, err := decodeOrderedValue(expected)
	if err != nil {
		return err
	}
	want, err := scalarToken(v)
	if err != nil {
		return fmt.Errorf("refedit: test op needs a scalar value: %w", err)
	}
	got := rawValue
	if unquoteToken(got) != unquoteToken(want) {
		return fmt.Errorf("refedit: test failed: have %q, want %q", got, want)
	}
	return nil
}

// decodeOrderedValue decodes a JSON value with goccy (JSON being a YAML
// subset), so object key order survives into rendered items.
func decodeOrderedValue(raw json.RawMessage) (interface{}, error) {
	if raw == nil {
		return nil, errors.New("refedit: missing 'value' for operation")
	}
	var v interface{}
	if err := gyaml.UnmarshalWithOptions(raw, &v, gyaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("refedit: invalid JSON value: %w", err)
	}
	return v, nil
}

func decodeItemFields(raw json.RawMessage) (gyaml.MapSlice, error) {
	v, err := decodeOrderedValue(raw)
	if err != nil {
		return nil, err
	}
	ms, ok := v.(gyaml.MapSlice)
	if !ok {
		return nil, fmt.Errorf("refedit: item value must be an object, got %T", v)
	}
	return ms, nil
}

// ensureRefField makes the path's ref segment authoritative for the item.
func ensureRefField(fields gyaml.MapSlice, ref string) gyaml.MapSlice {
	for i, f := range fields {
		if k, ok := f.Key.(string); ok && k == "ref" {
			fields[i].Value = ref
			return fields
		}
	}
	return append(gyaml.MapSlice{{Key: "ref", Value: ref}}, fields...)
}
