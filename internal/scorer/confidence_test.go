package scorer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-intel/internal/catalog"
	"github.com/sells-group/lead-intel/internal/model"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return New(c)
}

func TestScore_TenderWithVolume(t *testing.T) {
	s := newTestScorer(t)

	got := s.Score(model.Signal{
		Text:      "Tender for supply of 500 KL high speed diesel to captive power plant",
		Type:      model.SignalTypeTender,
		HasVolume: true,
	}, "HSD")

	assert.Equal(t, 0.95, got.FinalConfidence)
	assert.Equal(t, 0.95, got.BaseConfidence)
	assert.Equal(t, 0.0, got.Modifiers)
	assert.Empty(t, got.Status)
	assert.Equal(t, RuleTenderWithVolume, got.MatchedRule)
	assert.Equal(t, []string{"Base: explicitTenderWithVolume (0.95)"}, got.ReasonCodes)
}

func TestScore_NegativeKeywordOverridesTender(t *testing.T) {
	s := newTestScorer(t)

	got := s.Score(model.Signal{
		Text:                      "Tender for diesel supply to RETAIL outlets",
		Type:                      model.SignalTypeTender,
		HasVolume:                 true,
		HasCapacity:               true,
		HasHighConfidenceIndustry: true,
		Properties: map[string]bool{
			"capacityMentioned": true,
			"urgencyIndicators": true,
		},
	}, "HSD")

	assert.Equal(t, model.ConfidenceDiscarded, got.FinalConfidence)
	assert.Equal(t, model.ScoreStatusDiscarded, got.Status)
	assert.True(t, got.Discarded())
	assert.Equal(t, []string{"Matched negative keyword: retail"}, got.ReasonCodes)
	assert.Equal(t, 0.0, got.BaseConfidence)
	assert.Equal(t, 0.0, got.Modifiers)
}

func TestScore_FirstNegativeKeywordReported(t *testing.T) {
	s := newTestScorer(t)

	got := s.Score(model.Signal{
		Text: "automobile dealer opens a petrol pump",
		Type: model.SignalTypeNews,
	}, "HSD")

	assert.Equal(t, []string{"Matched negative keyword: petrol pump"}, got.ReasonCodes)
}

func TestScore_IndustryOnlyWithModifier(t *testing.T) {
	s := newTestScorer(t)

	got := s.Score(model.Signal{
		Text:                      "Cement major to expand clinker capacity in Gujarat",
		Type:                      model.SignalTypeNews,
		HasHighConfidenceIndustry: true,
		Properties:                map[string]bool{"existingHPCLRelationship": true},
	}, "FO")

	assert.Equal(t, 0.55, got.BaseConfidence)
	assert.Equal(t, 0.05, got.Modifiers)
	assert.Equal(t, 0.6, got.FinalConfidence)
	assert.Equal(t, RuleHighConfidenceIndustry, got.MatchedRule)
	assert.Equal(t, []string{
		"Base: highConfidenceIndustry (0.55)",
		"Modifier: existingHPCLRelationship (+0.05)",
	}, got.ReasonCodes)
}

func TestScore_UnknownProduct(t *testing.T) {
	s := newTestScorer(t)

	signals := []model.Signal{
		{},
		{Text: "retail", Type: model.SignalTypeTender, HasVolume: true},
		{Text: "boiler", HasCapacity: true, HasHighConfidenceIndustry: true, Properties: map[string]bool{"capacityMentioned": true}},
	}
	for _, sig := range signals {
		got := s.Score(sig, "NOT_A_REAL_CODE")
		assert.Equal(t, 0.30, got.FinalConfidence)
		assert.Equal(t, []string{ReasonProductNotFound}, got.ReasonCodes)
		assert.Empty(t, got.Status)
	}
}

func TestScore_ProductCodeCaseAndSpaceFolded(t *testing.T) {
	s := newTestScorer(t)
	sig := model.Signal{Text: "Tender for 500 KL diesel", Type: model.SignalTypeTender, HasVolume: true}

	for _, code := range []string{"hsd", " HSD ", "Hsd"} {
		got := s.Score(sig, code)
		assert.Equal(t, 0.95, got.FinalConfidence, code)
		assert.Equal(t, RuleTenderWithVolume, got.MatchedRule, code)
	}

	// Folding stops at case and space: a near miss is still unknown.
	for _, code := range []string{"H.S.D", "HSD1", "H SD"} {
		got := s.Score(sig, code)
		assert.Equal(t, 0.30, got.FinalConfidence, code)
		assert.Equal(t, []string{ReasonProductNotFound}, got.ReasonCodes, code)
	}
}

func TestScore_BaseRulePrecedence(t *testing.T) {
	s := newTestScorer(t)

	tests := []struct {
		name     string
		code     string
		signal   model.Signal
		wantRule string
		wantBase float64
	}{
		{
			name:     "tender with volume beats installation",
			code:     "FO",
			signal:   model.Signal{Type: model.SignalTypeTender, HasVolume: true, HasCapacity: true, HasHighConfidenceIndustry: true},
			wantRule: RuleTenderWithVolume,
			wantBase: 0.95,
		},
		{
			name:     "tender without volume falls through",
			code:     "FO",
			signal:   model.Signal{Type: model.SignalTypeTender, HasHighConfidenceIndustry: true},
			wantRule: RuleHighConfidenceIndustry,
			wantBase: 0.55,
		},
		{
			name:     "volume without tender falls through",
			code:     "HSD",
			signal:   model.Signal{Type: model.SignalTypeNews, HasVolume: true},
			wantRule: RuleDefaultBaseline,
			wantBase: 0.30,
		},
		{
			name:     "installation with capacity",
			code:     "FO",
			signal:   model.Signal{Type: model.SignalTypeWebStory, HasCapacity: true, HasHighConfidenceIndustry: true},
			wantRule: RuleInstallationWithCapacity,
			wantBase: 0.90,
		},
		{
			name:     "capacity alone is baseline",
			code:     "FO",
			signal:   model.Signal{Type: model.SignalTypeNews, HasCapacity: true},
			wantRule: RuleDefaultBaseline,
			wantBase: 0.30,
		},
		{
			name:     "hsd industry only",
			code:     "HSD",
			signal:   model.Signal{Type: model.SignalTypeDirectory, HasHighConfidenceIndustry: true},
			wantRule: RuleHighConfidenceIndustry,
			wantBase: 0.45,
		},
		{
			name:     "unbound industry tier uses fallback",
			code:     "BITUMEN",
			signal:   model.Signal{Type: model.SignalTypeNews, HasHighConfidenceIndustry: true},
			wantRule: RuleHighConfidenceIndustry,
			wantBase: catalog.FallbackHighConfidenceIndustry,
		},
		{
			name:     "product without base rules uses tender fallback",
			code:     "LDO",
			signal:   model.Signal{Type: model.SignalTypeTender, HasVolume: true},
			wantRule: RuleTenderWithVolume,
			wantBase: catalog.FallbackTenderWithVolume,
		},
		{
			name:     "product without base rules uses installation fallback",
			code:     "JBO",
			signal:   model.Signal{HasCapacity: true, HasHighConfidenceIndustry: true},
			wantRule: RuleInstallationWithCapacity,
			wantBase: catalog.FallbackInstallationWithCapacity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.signal.Text = "plant update"
			got := s.Score(tt.signal, tt.code)
			assert.Equal(t, tt.wantRule, got.MatchedRule)
			assert.Equal(t, tt.wantBase, got.BaseConfidence)
			assert.Equal(t, tt.wantBase, got.FinalConfidence)
		})
	}
}

func TestScore_ModifiersFollowCatalogOrder(t *testing.T) {
	s := newTestScorer(t)

	got := s.Score(model.Signal{
		Text: "DG set expansion",
		Type: model.SignalTypeNews,
		Properties: map[string]bool{
			"existingHPCLCustomer": true,
			"urgencyIndicators":    true,
			"multipleGensets":      true,
			"capacityMentioned":    true,
		},
	}, "HSD")

	assert.Equal(t, []string{
		"Base: defaultBaseline (0.3)",
		"Modifier: capacityMentioned (+0.15)",
		"Modifier: multipleGensets (+0.1)",
		"Modifier: urgencyIndicators (+0.1)",
		"Modifier: existingHPCLCustomer (+0.05)",
	}, got.ReasonCodes)
	assert.Equal(t, 0.4, got.Modifiers)
	assert.Equal(t, 0.7, got.FinalConfidence)
}

func TestScore_IgnoresFalseAndUnknownProperties(t *testing.T) {
	s := newTestScorer(t)

	got := s.Score(model.Signal{
		Text:                      "boiler commissioning",
		HasHighConfidenceIndustry: true,
		Properties: map[string]bool{
			"capacityVolumeSpecified": false,
			"notAFactor":              true,
			"capacityMentioned":       true, // HSD factor, not FO
		},
	}, "FO")

	assert.Equal(t, 0.55, got.FinalConfidence)
	assert.Equal(t, 0.0, got.Modifiers)
	assert.Len(t, got.ReasonCodes, 1)
}

func TestScore_ClampsAtCeiling(t *testing.T) {
	s := newTestScorer(t)

	got := s.Score(model.Signal{
		Text:                      "new boilers",
		HasCapacity:               true,
		HasHighConfidenceIndustry: true,
		Properties: map[string]bool{
			"capacityVolumeSpecified":   true,
			"multipleBoilersOrFurnaces": true,
		},
	}, "FO")

	assert.Equal(t, 0.90, got.BaseConfidence)
	assert.Equal(t, 0.25, got.Modifiers)
	assert.Equal(t, model.ConfidenceCeiling, got.FinalConfidence)
	assert.Len(t, got.ReasonCodes, 3)
}

func TestScore_DisqualifierTableIsDormant(t *testing.T) {
	s := newTestScorer(t)

	// FO declares coalOnlyMention and gasBasedOnly penalties; they are
	// catalog metadata and must not change the score.
	got := s.Score(model.Signal{
		Text:                      "Plant runs on coal only mention; gas based only boilers",
		Type:                      model.SignalTypeNews,
		HasHighConfidenceIndustry: true,
	}, "FO")

	assert.Equal(t, 0.55, got.FinalConfidence)
	assert.Empty(t, got.Status)
	assert.Equal(t, []string{"Base: highConfidenceIndustry (0.55)"}, got.ReasonCodes)
}

func TestScore_Deterministic(t *testing.T) {
	s := newTestScorer(t)
	sig := model.Signal{
		Text:                      "Steel plant orders furnace oil",
		Type:                      model.SignalTypeTender,
		HasVolume:                 true,
		HasHighConfidenceIndustry: true,
		Properties:                map[string]bool{"commissioningTimelineNear": true, "existingHPCLRelationship": true},
	}

	first := s.Score(sig, "FO")
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, s.Score(sig, "FO"))
	}
}

func TestScore_RangeInvariantAndMonotonicity(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)
	s := New(c)

	types := []model.SignalType{model.SignalTypeTender, model.SignalTypeNews, model.SignalTypeDirectory}
	for _, p := range c.Products() {
		for _, typ := range types {
			for mask := 0; mask < 8; mask++ {
				sig := model.Signal{
					Text:                      "industrial plant update",
					Type:                      typ,
					HasVolume:                 mask&1 != 0,
					HasCapacity:               mask&2 != 0,
					HasHighConfidenceIndustry: mask&4 != 0,
					Properties:                map[string]bool{},
				}

				prev := s.Score(sig, p.Code)
				assertInRange(t, prev.FinalConfidence)
				for _, f := range p.ScoringFactors {
					sig.Properties[f.Name] = true
					next := s.Score(sig, p.Code)
					assertInRange(t, next.FinalConfidence)
					assert.GreaterOrEqual(t, next.FinalConfidence, prev.FinalConfidence,
						"%s: enabling %s lowered confidence", p.Code, f.Name)
					assert.Equal(t, prev.MatchedRule, next.MatchedRule)
					prev = next
				}
			}
		}
	}
}

func assertInRange(t *testing.T, v float64) {
	t.Helper()
	assert.GreaterOrEqual(t, v, model.ConfidenceFloor)
	assert.LessOrEqual(t, v, model.ConfidenceCeiling)
}

func TestScore_WithFixtureCatalog(t *testing.T) {
	c, err := catalog.Parse([]byte(`
products:
  - code: TEST
    name: Test Product
    baseConfidenceRules:
      strong: 0.80
      weak: 0.40
    ruleBindings:
      tenderWithVolume: [strong]
      highConfidenceIndustry: [weak]
    negativeKeywords: ["Do Not Sell"]
    scoringFactors:
      penalty: -0.2
      bonus: 0.1
`))
	require.NoError(t, err)
	s := New(catalog.NewHolder(c))

	got := s.Score(model.Signal{
		Text:                      "industry only",
		HasHighConfidenceIndustry: true,
		Properties:                map[string]bool{"penalty": true},
	}, "test")
	assert.Equal(t, 0.40, got.BaseConfidence)
	assert.Equal(t, -0.2, got.Modifiers)
	assert.Equal(t, model.ConfidenceFloor, got.FinalConfidence, "clamped at the floor")
	assert.Equal(t, "Modifier: penalty (-0.2)", got.ReasonCodes[1])

	got = s.Score(model.Signal{Text: "please do not sell", Type: model.SignalTypeTender, HasVolume: true}, "TEST")
	assert.Equal(t, model.ConfidenceDiscarded, got.FinalConfidence)
	assert.Equal(t, []string{"Matched negative keyword: do not sell"}, got.ReasonCodes)
}

func TestScore_ThreeDecimalWeightsRoundOnce(t *testing.T) {
	c, err := catalog.Parse([]byte(`
products:
  - code: FINE
    name: Fine Grained
    baseConfidenceRules:
      weak: 0.304
    ruleBindings:
      highConfidenceIndustry: [weak]
    scoringFactors:
      tiny: 0.004
      small: 0.004
`))
	require.NoError(t, err)
	s := New(c)

	got := s.Score(model.Signal{
		Text:                      "industry only",
		HasHighConfidenceIndustry: true,
		Properties:                map[string]bool{"tiny": true},
	}, "FINE")
	assert.Equal(t, 0.304, got.BaseConfidence)
	assert.Equal(t, 0.0, got.Modifiers)
	assert.Equal(t, 0.31, got.FinalConfidence)
	assert.Equal(t, []string{"Base: highConfidenceIndustry (0.304)", "Modifier: tiny (+0.004)"}, got.ReasonCodes)

	got = s.Score(model.Signal{
		Text:                      "industry only",
		HasHighConfidenceIndustry: true,
		Properties:                map[string]bool{"tiny": true, "small": true},
	}, "FINE")
	assert.Equal(t, 0.01, got.Modifiers)
	assert.Equal(t, 0.31, got.FinalConfidence)
}

func TestScore_Concurrent(t *testing.T) {
	s := newTestScorer(t)
	sig := model.Signal{
		Text:                      "genset installation at data center",
		HasCapacity:               true,
		HasHighConfidenceIndustry: true,
		Properties:                map[string]bool{"multipleGensets": true},
	}
	want := s.Score(sig, "HSD")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				assert.Equal(t, want, s.Score(sig, "HSD"))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0.95, want.FinalConfidence)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 0.13, Round2(0.125))
	assert.Equal(t, -0.13, Round2(-0.125))
	assert.Equal(t, 0.6, Round2(0.55+0.05))
	assert.Equal(t, 0.9, Round2(0.6+0.3))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.3, Clamp(0.1, 0.3, 0.95))
	assert.Equal(t, 0.95, Clamp(1.4, 0.3, 0.95))
	assert.Equal(t, 0.5, Clamp(0.5, 0.3, 0.95))
}
