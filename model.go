package refedit

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	gyaml "github.com/goccy/go-yaml"
)

// Document is the typed view of a diagram document. It exists only at the
// boundary: decoding for read-only consumers and the bulk object-to-text
// path for brand-new documents. Edits to existing documents go through the
// text operations so original formatting survives.
type Document struct {
	Name        string
	Description string
	Tags        []string
	Components  []Component
	Assets      []Asset
	Connections []Connection
	Groups      []Group
}

type Component struct {
	Ref         string
	Name        string
	Description string
	Assets      []string
	Notes       string
}

type Asset struct {
	Ref   string
	Name  string
	Path  string
	Notes string
}

type Connection struct {
	Ref       string
	Source    string
	Target    string
	Direction string
	Label     string
}

type Group struct {
	Ref     string
	Name    string
	Members []string
}

// DecodeDocument parses a document into its typed view. Keys and sections
// outside the dialect's shape are silently skipped.
func DecodeDocument(doc string) (*Document, error) {
	var root gyaml.MapSlice
	if err := gyaml.UnmarshalWithOptions([]byte(doc), &root, gyaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("refedit: decode document: %w", err)
	}

	d := &Document{}
	for _, entry := range root {
		key, ok := entry.Key.(string)
		if !ok {
			continue
		}
		switch key {
		case "name":
			d.Name = asString(entry.Value)
		case "description":
			d.Description = asString(entry.Value)
		case "tags":
			d.Tags = asStringSlice(entry.Value)
		case "components":
			for _, ms := range asItemMaps(entry.Value) {
				d.Components = append(d.Components, Component{
					Ref:         mapString(ms, "ref"),
					Name:        mapString(ms, "name"),
					Description: mapString(ms, "description"),
					Assets:      asStringSlice(mapValue(ms, "assets")),
					Notes:       mapString(ms, "notes"),
				})
			}
		case "assets":
			for _, ms := range asItemMaps(entry.Value) {
				d.Assets = append(d.Assets, Asset{
					Ref:   mapString(ms, "ref"),
					Name:  mapString(ms, "name"),
					Path:  mapString(ms, "path"),
					Notes: mapString(ms, "notes"),
				})
			}
		case "connections":
			for _, ms := range asItemMaps(entry.Value) {
				d.Connections = append(d.Connections, Connection{
					Ref:       mapString(ms, "ref"),
					Source:    mapString(ms, "source"),
					Target:    mapString(ms, "target"),
					Direction: mapString(ms, "direction"),
					Label:     mapString(ms, "label"),
				})
			}
		case "groups":
			for _, ms := range asItemMaps(entry.Value) {
				d.Groups = append(d.Groups, Group{
					Ref:     mapString(ms, "ref"),
					Name:    mapString(ms, "name"),
					Members: asStringSlice(mapValue(ms, "members")),
				})
			}
		}
	}
	return d, nil
}

// EncodeDocument renders a brand-new document through the same formatting
// primitives the editor uses, then normalizes. Empty sections are omitted.
// A connection with an empty Ref gets its composite ref synthesized from
// its endpoints.
func EncodeDocument(d *Document) (string, error) {
	var sb strings.Builder

	writeField := func(name string, value interface{}) error {
		rendered, err := renderFieldLines(0, name, value)
		if err != nil {
			return err
		}
		for _, ln := range rendered {
			sb.WriteString(ln)
			sb.WriteString("\n")
		}
		return nil
	}

	if err := writeField("name", d.Name); err != nil {
		return "", err
	}
	if d.Description != "" {
		if err := writeField("description", d.Description); err != nil {
			return "", err
		}
	}
	if len(d.Tags) > 0 {
		sb.WriteString("tags:\n")
		for _, tag := range d.Tags {
			sb.WriteString("  - " + renderScalar(tag) + "\n")
		}
	}

	writeSection := func(name string, items []gyaml.MapSlice) error {
		if len(items) == 0 {
			return nil
		}
		sb.WriteString("\n" + name + ":\n")
		for i, fields := range items {
			block, err := renderItemBlock(2, fields)
			if err != nil {
				return err
			}
			if i > 0 {
				sb.WriteString("\n")
			}
			for _, ln := range block {
				sb.WriteString(ln)
				sb.WriteString("\n")
			}
		}
		return nil
	}

	var components []gyaml.MapSlice
	for _, c := range d.Components {
		components = append(components, gyaml.MapSlice{
			{Key: "ref", Value: c.Ref},
			{Key: "name", Value: c.Name},
			{Key: "description", Value: emptyAsNil(c.Description)},
			{Key: "assets", Value: c.Assets},
			{Key: "notes", Value: emptyAsNil(c.Notes)},
		})
	}
	if err := writeSection("components", components); err != nil {
		return "", err
	}

	var assets []gyaml.MapSlice
	for _, a := range d.Assets {
		assets = append(assets, gyaml.MapSlice{
			{Key: "ref", Value: a.Ref},
			{Key: "name", Value: a.Name},
			{Key: "path", Value: emptyAsNil(a.Path)},
			{Key: "notes", Value: emptyAsNil(a.Notes)},
		})
	}
	if err := writeSection("assets", assets); err != nil {
		return "", err
	}

	var connections []gyaml.MapSlice
	for _, c := range d.Connections {
		ref := c.Ref
		if ref == "" {
			ref = compositeRef(c.Source, c.Target, c.Direction)
		}
		connections = append(connections, gyaml.MapSlice{
			{Key: "ref", Value: ref},
			{Key: "source", Value: c.Source},
			{Key: "target", Value: c.Target},
			{Key: "direction", Value: emptyAsNil(c.Direction)},
			{Key: "label", Value: emptyAsNil(c.Label)},
		})
	}
	if err := writeSection("connections", connections); err != nil {
		return "", err
	}

	var groups []gyaml.MapSlice
	for _, g := range d.Groups {
		groups = append(groups, gyaml.MapSlice{
			{Key: "ref", Value: g.Ref},
			{Key: "name", Value: g.Name},
			{Key: "members", Value: g.Members},
		})
	}
	if err := writeSection("groups", groups); err != nil {
		return "", err
	}

	return NormalizeWhitespace(sb.String()), nil
}

// Validate checks structural soundness: a document name, a ref on every
// item, a known direction on connections, document-wide ref uniqueness, and
// connection endpoints naming component refs.
func (d *Document) Validate() error {
	if err := validation.ValidateStruct(d,
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.Components, validation.By(requireRefs[Component](func(c Component) string { return c.Ref }))),
		validation.Field(&d.Assets, validation.By(requireRefs[Asset](func(a Asset) string { return a.Ref }))),
		validation.Field(&d.Groups, validation.By(requireRefs[Group](func(g Group) string { return g.Ref }))),
		validation.Field(&d.Connections, validation.By(d.checkConnections)),
	); err != nil {
		return err
	}
	return d.checkUniqueRefs()
}

func requireRefs[T any](ref func(T) string) validation.RuleFunc {
	return func(value interface{}) error {
		items, _ := value.([]T)
		for i, it := range items {
			if ref(it) == "" {
				return fmt.Errorf("item %d: ref is required", i)
			}
		}
		return nil
	}
}

func (d *Document) checkConnections(value interface{}) error {
	conns, _ := value.([]Connection)
	components := map[string]struct{}{}
	for _, c := range d.Components {
		components[c.Ref] = struct{}{}
	}
	for i, c := range conns {
		if c.Ref == "" {
			return fmt.Errorf("connection %d: ref is required", i)
		}
		if c.Direction != "" && c.Direction != "one-way" && c.Direction != directionTwoWay {
			return fmt.Errorf("connection %q: direction must be one-way or two-way", c.Ref)
		}
		if _, ok := components[c.Source]; !ok {
			return fmt.Errorf("connection %q: source %q is not a component", c.Ref, c.Source)
		}
		if _, ok := components[c.Target]; !ok {
			return fmt.Errorf("connection %q: target %q is not a component", c.Ref, c.Target)
		}
	}
	return nil
}

func (d *Document) checkUniqueRefs() error {
	seen := map[string]struct{}{}
	check := func(ref string) error {
		if _, dup := seen[ref]; dup {
			return fmt.Errorf("duplicate ref %q", ref)
		}
		seen[ref] = struct{}{}
		return nil
	}
	for _, c := range d.Components {
		if err := check(c.Ref); err != nil {
			return err
		}
	}
	for _, a := range d.Assets {
		if err := check(a.Ref); err != nil {
			return err
		}
	}
	for _, c := range d.Connections {
		if err := check(c.Ref); err != nil {
			return err
		}
	}
	for _, g := range d.Groups {
		if err := check(g.Ref); err != nil {
			return err
		}
	}
	return nil
}

// ----- decode helpers -----

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v interface{}) []string {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asItemMaps(v interface{}) []gyaml.MapSlice {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]gyaml.MapSlice, 0, len(arr))
	for _, e := range arr {
		if ms, ok := e.(gyaml.MapSlice); ok {
			out = append(out, ms)
		}
	}
	return out
}

func mapValue(ms gyaml.MapSlice, key string) interface{} {
	for _, it := range ms {
		if k, ok := it.Key.(string); ok && k == key {
			return it.Value
		}
	}
	return nil
}

func mapString(ms gyaml.MapSlice, key string) string {
	return asString(mapValue(ms, key))
}

func emptyAsNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
