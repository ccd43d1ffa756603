package appads

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devx/appads-extractor/internal/models"
)

const sampleDoc = `# comment line
appnexus.com, 12447, DIRECT, f5ab79cb980f11d1
rubiconproject.com, 99999, RESELLER

google.com, 1, BOGUS, tag1
malformed-line-no-commas
`

func TestAnalyzeCountsLineCategories(t *testing.T) {
	out, err := Analyze(context.Background(), sampleDoc, models.SearchQuery{}, MemoryThresholds{}, ResultCapBounds{}, nil)
	require.NoError(t, err)

	a := out.Analyzed
	assert.Equal(t, 1, a.CommentLines)
	assert.Equal(t, 1, a.EmptyLines)
	assert.Equal(t, 3, a.ValidLines)
	assert.Equal(t, 1, a.InvalidLines)
	assert.Equal(t, a.ValidLines+a.CommentLines+a.EmptyLines+a.InvalidLines, a.TotalLines)
	assert.Equal(t, a.Relationships.Direct+a.Relationships.Reseller+a.Relationships.Other, a.ValidLines)
}

func TestAnalyzeStructuredSearchFindsExactLine(t *testing.T) {
	query := models.SearchQuery{Terms: []models.SearchTerm{
		{
			Kind: models.TermStructured,
			Structured: models.StructuredTerm{
				Domain:       "appnexus.com",
				PublisherId:  "12447",
				Relationship: "DIRECT",
			},
		},
	}}

	out, err := Analyze(context.Background(), sampleDoc, query, MemoryThresholds{}, ResultCapBounds{}, nil)
	require.NoError(t, err)
	require.NotNil(t, out.SearchResults)
	require.GreaterOrEqual(t, out.SearchResults.UnionCount, 1)
	assert.Equal(t, 2, out.SearchResults.Union[0].LineNumber)

	// The term has three non-empty fields (domain, publisherId, relationship)
	// all satisfied by the same line; it must count once per matching line,
	// not once per matching field.
	require.Len(t, out.SearchResults.PerTermCount, 1)
	assert.Equal(t, 1, out.SearchResults.PerTermCount[0])
	require.Len(t, out.SearchResults.PerTerm[0], 1)
	assert.Equal(t, 2, out.SearchResults.PerTerm[0][0].LineNumber)
}

func TestAnalyzeFreeTextTermsFormSingleANDGroup(t *testing.T) {
	query := models.SearchQuery{Terms: []models.SearchTerm{
		{Kind: models.TermFreeText, FreeText: "appnexus"},
		{Kind: models.TermFreeText, FreeText: "12447"},
	}}

	out, err := Analyze(context.Background(), sampleDoc, query, MemoryThresholds{}, ResultCapBounds{}, nil)
	require.NoError(t, err)
	require.NotNil(t, out.SearchResults)
	assert.Equal(t, 1, out.SearchResults.UnionCount)
}

func TestAnalyzeNoQueryMeansNoSearchResults(t *testing.T) {
	out, err := Analyze(context.Background(), sampleDoc, models.SearchQuery{}, MemoryThresholds{}, ResultCapBounds{}, nil)
	require.NoError(t, err)
	assert.Nil(t, out.SearchResults)
}

func TestAnalyzeHandlesCRLFAndCRLineEndings(t *testing.T) {
	doc := "a.com, 1, DIRECT\r\nb.com, 2, RESELLER\rc.com, 3, DIRECT\n"
	out, err := Analyze(context.Background(), doc, models.SearchQuery{}, MemoryThresholds{}, ResultCapBounds{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Analyzed.ValidLines)
}
