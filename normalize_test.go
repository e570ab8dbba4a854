package refedit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIsIdempotent(t *testing.T) {
	docs := []string{
		demoDoc,
		"",
		"name: Solo\n",
		"\n\n\nname: Messy\n\n\n\ncomponents:\n  - ref: a\n    name: A\n\n\n\n",
		"components:\n  - ref: a\n    notes: |\n      body\n\n      more\n  - ref: b\n    name: B\n",
	}
	for _, doc := range docs {
		once := NormalizeWhitespace(doc)
		twice := NormalizeWhitespace(once)
		require.Equal(t, once, twice, "normalize must be idempotent for:\n%q", doc)
	}
}

func TestNormalizeCollapsesBlankRuns(t *testing.T) {
	doc := "name: Demo\n\n\n\ncomponents:\n  - ref: a\n    name: A\n\n\n\n  - ref: b\n    name: B\n"
	out := NormalizeWhitespace(doc)
	assert.Equal(t, "name: Demo\n\ncomponents:\n  - ref: a\n    name: A\n\n  - ref: b\n    name: B\n", out)
}

func TestNormalizeInsertsBlanksBetweenItems(t *testing.T) {
	doc := "components:\n  - ref: a\n    name: A\n  - ref: b\n    name: B\n"
	out := NormalizeWhitespace(doc)
	assert.Equal(t, "components:\n  - ref: a\n    name: A\n\n  - ref: b\n    name: B\n", out)
}

func TestNormalizeInsertsBlankBeforeSections(t *testing.T) {
	doc := "components:\n  - ref: a\n    name: A\nassets:\n  - ref: x\n    name: X\n"
	out := NormalizeWhitespace(doc)
	assert.Contains(t, out, "    name: A\n\nassets:\n")
}

func TestNormalizeRemovesBlanksInsideItems(t *testing.T) {
	doc := "components:\n  - ref: a\n\n    name: A\n\n    label: one\n"
	out := NormalizeWhitespace(doc)
	assert.Equal(t, "components:\n  - ref: a\n    name: A\n    label: one\n", out)
}

func TestNormalizeKeepsTopLevelFieldsTight(t *testing.T) {
	doc := "name: Demo\n\ndescription: About\n"
	out := NormalizeWhitespace(doc)
	assert.Equal(t, "name: Demo\ndescription: About\n", out)
}

func TestNormalizePreservesBlockScalarInterior(t *testing.T) {
	doc := "components:\n  - ref: a\n    notes: |\n      first\n\n\n      after two blanks\n"
	out := NormalizeWhitespace(doc)
	assert.Contains(t, out, "      first\n\n\n      after two blanks\n",
		"interior blank runs of a block scalar are untouchable")
}

func TestNormalizeTrimsTrailingBlockBlanks(t *testing.T) {
	doc := "components:\n  - ref: a\n    notes: |\n      body\n\n\n  - ref: b\n    name: B\n"
	out := NormalizeWhitespace(doc)
	assert.Contains(t, out, "      body\n\n  - ref: b\n",
		"blanks trailing a block scalar collapse into the inter-item gap")
}

func TestNormalizeSectionCommentAttachment(t *testing.T) {
	doc := "name: Demo\ncomponents:\n  - ref: a\n    name: A\n# inventory\nassets: []\n"
	out := NormalizeWhitespace(doc)
	assert.Contains(t, out, "    name: A\n\n# inventory\nassets: []\n",
		"a section-introducing comment takes the blank line, the header stays attached to it")
}

func TestNormalizeDropsLeadingAndTrailingBlanks(t *testing.T) {
	out := NormalizeWhitespace("\n\nname: Demo\n\n\n")
	assert.Equal(t, "name: Demo\n", out)

	assert.Equal(t, "", NormalizeWhitespace("\n\n\n"))
}

func TestMutationsEndNormalized(t *testing.T) {
	messy := "name: Demo\n\n\ncomponents:\n  - ref: a\n    name: A\n  - ref: b\n    name: B\n"
	out, err := UpdateField(messy, "components", "a", "name", "A2")
	require.NoError(t, err)
	assert.Equal(t, NormalizeWhitespace(out), out, "mutations must return normalized text")
}
