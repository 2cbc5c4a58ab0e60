package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfer_PrimaryAndSecondary(t *testing.T) {
	c := mustDefault(t)

	got := c.Infer("Tender for supply of Furnace Oil to the industrial boiler at Unit 2", InferOptions{})
	require.Len(t, got, 1)
	assert.Equal(t, "FO", got[0].Code)
	assert.Equal(t, "Furnace Oil", got[0].Name)
	assert.Equal(t, 0.9, got[0].Confidence)
	assert.Equal(t, "Matched keyword: 'furnace oil'; Matched context: 'industrial boiler'", got[0].Reasoning)
}

func TestInfer_ShortCodesNeedWordBoundaries(t *testing.T) {
	c := mustDefault(t)

	assert.Empty(t, c.Infer("Looking for new suppliers before the format changes", InferOptions{}))

	got := c.Infer("Requirement: FO 180 grade, 500 KL", InferOptions{})
	require.NotEmpty(t, got)
	assert.Equal(t, "FO", got[0].Code)
	assert.Equal(t, 0.6, got[0].Confidence)
}

func TestInfer_SortedAndLimited(t *testing.T) {
	c := mustDefault(t)
	text := "Contractor needs bitumen and furnace oil for the highway project"

	got := c.Infer(text, InferOptions{})
	require.Len(t, got, 2)
	assert.Equal(t, "BITUMEN", got[0].Code)
	assert.Equal(t, 0.9, got[0].Confidence)
	assert.Equal(t, "FO", got[1].Code)
	assert.Equal(t, 0.6, got[1].Confidence)

	limited := c.Infer(text, InferOptions{Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, "BITUMEN", limited[0].Code)
}

func TestInfer_MinConfidence(t *testing.T) {
	c := mustDefault(t)

	// A context hit alone scores 0.3, below the default floor.
	assert.Empty(t, c.Infer("New paint and varnish line commissioned", InferOptions{}))

	got := c.Infer("New paint and varnish line commissioned", InferOptions{MinConfidence: 0.3})
	require.Len(t, got, 1)
	assert.Equal(t, "MTO", got[0].Code)
	assert.Equal(t, 0.3, got[0].Confidence)
	assert.Equal(t, "Matched context: 'paint'", got[0].Reasoning)
}

func TestInfer_NegativeKeywordSkipsProduct(t *testing.T) {
	c := mustDefault(t)

	assert.Empty(t, c.Infer("Retail petrol pump wants a diesel genset", InferOptions{}))
}

func TestContainsPhrase(t *testing.T) {
	tests := []struct {
		text   string
		phrase string
		want   bool
	}{
		{"fo 380 supply", "fo", true},
		{"supply of fo", "fo", true},
		{"for supply", "fo", false},
		{"info fo.", "fo", true},
		{"vg 30 grade", "vg 30", true},
		{"vg 300 grade", "vg 30", false},
		{"anything", "", false},
		{"café fo", "fo", true},
	}

	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.phrase, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsPhrase(tt.text, tt.phrase))
		})
	}
}
