package casestudies

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaAcceptsExport(t *testing.T) {
	data, err := EncodeCollection([]CaseRecord{publishedRecord("a", "Cloud"), {Slug: "b", TitleDe: "B", Quote: &Quote{TextDe: "Gut"}}})
	require.NoError(t, err)

	problems, err := SchemaErrors(data)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestSchemaReportsStructuralProblems(t *testing.T) {
	problems, err := SchemaErrors([]byte(`[
		{"slug": "a", "tech": "Go"},
		{"titleDe": "Kein Slug", "colour": "red"},
		{"slug": "c", "status": "archived"},
		{"slug": "d", "quote": "nice"}
	]`))
	require.NoError(t, err)

	joined := strings.Join(problems, "\n")
	assert.Contains(t, joined, "0.tech")
	assert.Contains(t, joined, "3.quote")
	assert.Contains(t, joined, "colour")
	assert.Contains(t, joined, "2.status")
}

func TestSchemaRejectsNonArrayAndGarbage(t *testing.T) {
	problems, err := SchemaErrors([]byte(`{"slug": "a"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, problems)

	_, err = SchemaErrors([]byte(`[{`))
	assert.ErrorIs(t, err, ErrMalformedImport)
}
