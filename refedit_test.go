package refedit

import (
	"fmt"
	"strings"
	"testing"

	gyaml "github.com/goccy/go-yaml"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const demoDoc = `name: Demo
description: Internal services map

components:
  - ref: api
    name: API
    assets: [asset-1, asset-2]

  - ref: api-server
    name: API Server
    notes: |
      Serves the API.

      Restarts nightly.

assets:
  - ref: asset-1
    name: First

  - ref: asset-2
    name: Second

connections:
  - ref: api->api-server
    source: api
    target: api-server
    label: calls

groups:
  - ref: core
    name: Core
    members: [api, api-server]
`

func TestScanClassifiesBlockScalarContent(t *testing.T) {
	lines := scanLines(demoDoc)

	kinds := map[string]lineKind{}
	for _, ln := range lines {
		kinds[ln.trimmed] = ln.kind
	}
	if kinds["components:"] != kindSectionHeader {
		t.Fatalf("components: classified as %v, want section header", kinds["components:"])
	}
	if kinds["- ref: api"] != kindItemStart {
		t.Fatalf("item start misclassified: %v", kinds["- ref: api"])
	}
	if kinds["notes: |"] != kindPipeIndicator {
		t.Fatalf("pipe indicator misclassified: %v", kinds["notes: |"])
	}
	if kinds["Serves the API."] != kindPipeContent {
		t.Fatalf("pipe content misclassified: %v", kinds["Serves the API."])
	}
	// The blank between the two notes lines is interior to the block.
	for i, ln := range lines {
		if ln.trimmed == "Serves the API." {
			assert.Equal(t, kindPipeContent, lines[i+1].kind, "interior blank should be pipe content")
		}
		if ln.trimmed == "Restarts nightly." {
			assert.Equal(t, kindBlank, lines[i+1].kind, "trailing blank should leave the block")
		}
	}
}

func TestFindSectionIgnoresIndentedLookalikes(t *testing.T) {
	lines := scanLines(demoDoc)

	// "assets: [asset-1, asset-2]" inside the api component appears before
	// the assets section and must not shadow it.
	sec, ok := findSection(lines, "assets")
	require.True(t, ok)
	require.Equal(t, "assets:", lines[sec.start].trimmed)
	require.Equal(t, 0, lines[sec.start].indent)
}

func TestFindItemBoundsBlockScalar(t *testing.T) {
	lines := scanLines(demoDoc)
	sec, ok := findSection(lines, "components")
	require.True(t, ok)

	it, ok := findItem(lines, sec, "api-server")
	require.True(t, ok)
	assert.Equal(t, "- ref: api-server", lines[it.start].trimmed)
	assert.Equal(t, "Restarts nightly.", lines[it.end].trimmed,
		"item must extend through the block scalar, past its interior blank line")
	assert.Equal(t, 4, it.fieldIndent)
}

func TestUpdateFieldQuotesEmbeddedColon(t *testing.T) {
	out, err := UpdateField(demoDoc, "components", "api", "name", "Service: API")
	require.NoError(t, err)
	if !strings.Contains(out, `    name: "Service: API"`+"\n") {
		t.Fatalf("expected quoted value, got:\n%s", out)
	}

	diff := unifiedDiff(demoDoc, out)
	adds, removes := diffStats(diff)
	if adds > 1 || removes > 1 {
		t.Fatalf("expected single-line change, got %d additions / %d removals:\n%s", adds, removes, diff)
	}
	mustParseYAML(t, out)
}

func TestUpdateFieldRoundsNumbers(t *testing.T) {
	out, err := UpdateField(demoDoc, "assets", "asset-1", "weight", 2.6)
	require.NoError(t, err)
	assert.Contains(t, out, "    weight: 3\n")
}

func TestUpdateFieldInsertsAtDetectedIndent(t *testing.T) {
	out, err := UpdateField(demoDoc, "assets", "asset-1", "path", "/srv/data")
	require.NoError(t, err)
	assert.Contains(t, out, "    name: First\n    path: /srv/data\n")
}

func TestUpdateFieldMultilineBecomesPipeBlock(t *testing.T) {
	out, err := UpdateField(demoDoc, "assets", "asset-2", "notes", "first line\nsecond line")
	require.NoError(t, err)
	assert.Contains(t, out, "    notes: |\n      first line\n      second line\n")
	mustParseYAML(t, out)
}

func TestUpdateFieldRemovesPipeBlock(t *testing.T) {
	out, err := UpdateField(demoDoc, "components", "api-server", "notes", nil)
	require.NoError(t, err)
	assert.NotContains(t, out, "notes: |")
	assert.NotContains(t, out, "Serves the API.")
	assert.NotContains(t, out, "Restarts nightly.")
	assert.Contains(t, out, "    name: API Server\n\nassets:\n")
}

func TestUpdateFieldRewritesArrayInline(t *testing.T) {
	out, err := UpdateField(demoDoc, "groups", "core", "members", []string{"api"})
	require.NoError(t, err)
	assert.Contains(t, out, "    members: [api]\n")

	out, err = UpdateField(out, "groups", "core", "members", []string{})
	require.NoError(t, err)
	assert.NotContains(t, out, "members:")
}

func TestUpdateFieldMissingTargetsNoOp(t *testing.T) {
	out, err := UpdateField(demoDoc, "zones", "z-1", "name", "x")
	require.NoError(t, err)
	assert.Equal(t, demoDoc, out)

	out, err = UpdateField(demoDoc, "components", "ghost", "name", "x")
	require.NoError(t, err)
	assert.Equal(t, demoDoc, out)
}

func TestUpdateFieldRejectsUnsupportedType(t *testing.T) {
	_, err := UpdateField(demoDoc, "components", "api", "name", struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scalar type")
}

func TestUpdateTopLevelField(t *testing.T) {
	out, err := UpdateTopLevelField(demoDoc, "name", "Renamed")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "name: Renamed\n"), "got:\n%s", out)

	out, err = UpdateTopLevelField(demoDoc, "owner", "platform team")
	require.NoError(t, err)
	assert.Contains(t, out, "description: Internal services map\nowner: platform team\n")
}

func TestUpdateOptionalTopLevelFieldRemovesOnEmpty(t *testing.T) {
	out, err := UpdateOptionalTopLevelField(demoDoc, "description", "   ")
	require.NoError(t, err)
	assert.NotContains(t, out, "description:")

	// Removing a field that is not there is a no-op.
	again, err := UpdateOptionalTopLevelField(out, "description", "")
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestUpdateTopLevelStringArray(t *testing.T) {
	out, err := UpdateTopLevelStringArray(demoDoc, "tags", []string{"infra", "reviewed"})
	require.NoError(t, err)
	assert.Contains(t, out, "tags:\n  - infra\n  - reviewed\n")
	mustParseYAML(t, out)

	out, err = UpdateTopLevelStringArray(out, "tags", []string{"infra"})
	require.NoError(t, err)
	assert.Contains(t, out, "tags:\n  - infra\n")
	assert.NotContains(t, out, "reviewed")

	out, err = UpdateTopLevelStringArray(out, "tags", nil)
	require.NoError(t, err)
	assert.NotContains(t, out, "tags:")
}

func TestAppendItemAfterLastItem(t *testing.T) {
	out, err := AppendItem(demoDoc, "assets", orderedFields(
		"ref", "asset-3",
		"name", "Third",
	))
	require.NoError(t, err)
	assert.Contains(t, out, "    name: Second\n\n  - ref: asset-3\n    name: Third\n")
	mustParseYAML(t, out)
}

func TestAppendItemExpandsEmptyMarker(t *testing.T) {
	doc := "name: Demo\n\ncomponents: []\n"
	out, err := AppendItem(doc, "components", orderedFields("ref", "first", "name", "First"))
	require.NoError(t, err)
	assert.Equal(t, "name: Demo\n\ncomponents:\n  - ref: first\n    name: First\n", out)
}

func TestAppendItemCreatesMissingSection(t *testing.T) {
	out, err := AppendItem(demoDoc, "zones", orderedFields("ref", "z-1", "name", "Zone"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "\nzones:\n  - ref: z-1\n    name: Zone\n"), "got:\n%s", out)
}

func TestAppendItemOmitsEmptyValues(t *testing.T) {
	out, err := AppendItem(demoDoc, "assets", orderedFields(
		"ref", "asset-3",
		"name", "Third",
		"notes", nil,
		"links", []string{},
	))
	require.NoError(t, err)
	assert.Contains(t, out, "  - ref: asset-3\n    name: Third\n\nconnections:",
		"nil and empty-array fields are left out of the new block")
	assert.NotContains(t, out, "links")
}

func TestAppendItemRequiresRef(t *testing.T) {
	_, err := AppendItem(demoDoc, "assets", orderedFields("name", "Nameless"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing ref")
}

func TestRemoveItemSoleItemCollapsesToMarker(t *testing.T) {
	doc := "components:\n  - ref: solo\n    name: Only\n"
	out, err := RemoveItem(doc, "components", "solo")
	require.NoError(t, err)
	assert.Equal(t, "components: []\n", out)
}

func TestRemoveItemKeepsCommentsForNextSection(t *testing.T) {
	doc := `components:
  - ref: solo
    name: Only

# the asset inventory
assets:
  - ref: asset-1
    name: First
`
	out, err := RemoveItem(doc, "components", "solo")
	require.NoError(t, err)
	assert.Contains(t, out, "components: []\n")
	assert.Contains(t, out, "# the asset inventory\nassets:\n")
}

const commentedPairDoc = `components:
  - ref: a
    name: A

  # gateway notes
  - ref: b
    name: B
`

func TestSectionItemsExcludeNextItemComment(t *testing.T) {
	lines := scanLines(commentedPairDoc)
	sec, ok := findSection(lines, "components")
	require.True(t, ok)

	items := sectionItems(lines, sec)
	require.Len(t, items, 2)
	assert.Equal(t, "name: A", lines[items[0].end].trimmed,
		"the comment introducing b is not part of a's range")
	assert.Equal(t, "- ref: b", lines[items[1].start].trimmed)
}

func TestRemoveItemKeepsNextItemComment(t *testing.T) {
	out, err := RemoveItem(commentedPairDoc, "components", "a")
	require.NoError(t, err)
	assert.NotContains(t, out, "name: A")
	assert.Contains(t, out, "  # gateway notes\n  - ref: b\n")
}

func TestUpdateFieldInsertStopsBeforeNextItemComment(t *testing.T) {
	out, err := UpdateField(commentedPairDoc, "components", "a", "owner", "edge team")
	require.NoError(t, err)
	assert.Contains(t, out, "    name: A\n    owner: edge team\n\n  # gateway notes\n  - ref: b\n")
}

func TestAppendRemoveRoundTrip(t *testing.T) {
	out, err := AppendItem(demoDoc, "assets", orderedFields("ref", "asset-3", "name", "Third"))
	require.NoError(t, err)
	back, err := RemoveItem(out, "assets", "asset-3")
	require.NoError(t, err)
	assert.Equal(t, NormalizeWhitespace(demoDoc), NormalizeWhitespace(back))
}

func TestOperationsAreSafeConcurrently(t *testing.T) {
	var g errgroup.Group
	results := make([]string, 8)
	for i := 0; i < len(results); i++ {
		i := i
		g.Go(func() error {
			out, err := UpdateField(demoDoc, "components", "api", "name", fmt.Sprintf("API %d", i))
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
		g.Go(func() error {
			_, _, err := RenameComponent(demoDoc, "api", "svc")
			return err
		})
	}
	require.NoError(t, g.Wait())
	for i, out := range results {
		assert.Contains(t, out, fmt.Sprintf("name: API %d", i))
	}
}

// --- helpers for tests ---

func orderedFields(kv ...interface{}) (ms gyaml.MapSlice) {
	for i := 0; i+1 < len(kv); i += 2 {
		ms = append(ms, gyaml.MapItem{Key: kv[i], Value: kv[i+1]})
	}
	return ms
}

// mustParseYAML asserts the mutated document still parses as YAML.
func mustParseYAML(t *testing.T, doc string) *yaml.Node {
	t.Helper()
	var n yaml.Node
	if err := yaml.Unmarshal([]byte(doc), &n); err != nil {
		t.Fatalf("document no longer parses as YAML: %v\n%s", err, doc)
	}
	return &n
}

// findMapNode walks a mapping node by a sequence of scalar keys and returns the final value node.
func findMapNode(n *yaml.Node, path ...string) *yaml.Node {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	cur := n
	for _, k := range path {
		if cur.Kind != yaml.MappingNode {
			return nil
		}
		var found *yaml.Node
		for i := 0; i+1 < len(cur.Content); i += 2 {
			if cur.Content[i].Kind == yaml.ScalarNode && cur.Content[i].Value == k {
				found = cur.Content[i+1]
				break
			}
		}
		if found == nil {
			return nil
		}
		cur = found
	}
	return cur
}

func unifiedDiff(before, after string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "before",
		ToFile:   "after",
		Context:  2,
	})
	if err != nil {
		return err.Error()
	}
	return diff
}

func diffStats(diff string) (adds, removes int) {
	for _, line := range strings.Split(diff, "\n") {
		if len(line) == 0 {
			continue
		}
		switch line[0] {
		case '+':
			if !strings.HasPrefix(line, "+++") {
				adds++
			}
		case '-':
			if !strings.HasPrefix(line, "---") {
				removes++
			}
		}
	}
	return
}
