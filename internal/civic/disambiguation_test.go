package civic

import (
	"testing"

	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestEngine_Classify_Disambiguation(t *testing.T) {
	engine := NewDefaultEngine(nil)

	tests := []struct {
		name    string
		summary string
		want    []string
		exclude []string
	}{
		{
			name:    "civil servant retirement keeps specific benefits",
			summary: "Altera as regras de aposentadoria dos servidores públicos no regime geral de previdência social",
			want:    []string{CodeCategoryBenefits},
			exclude: []string{CodeSocialRights},
		},
		{
			name:    "no beneficiary cue keeps social rights",
			summary: "Institui gratificação no âmbito da assistência social",
			want:    []string{CodeSocialRights},
			exclude: []string{CodeCategoryBenefits},
		},
		{
			name:    "exemption vocabulary keeps exemption",
			summary: "Institui contribuição social com isenção para microempresas",
			want:    []string{CodeTaxExemption},
			exclude: []string{CodeTaxIncrease},
		},
		{
			name:    "fiscal amnesty counts as relief",
			summary: "Concede anistia fiscal e cria taxa de fiscalização",
			want:    []string{CodeTaxExemption},
			exclude: []string{CodeTaxIncrease},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := codes(engine.Classify(tt.summary, ""))
			for _, code := range tt.want {
				assert.Contains(t, got, code)
			}
			for _, code := range tt.exclude {
				assert.NotContains(t, got, code)
			}
		})
	}
}

func TestDisambiguate(t *testing.T) {
	match := func(code string) model.CategoryMatch {
		return model.CategoryMatch{CategoryCode: code, MatchedPattern: code, Confidence: RuleConfidence}
	}

	tests := []struct {
		name    string
		text    string
		matches []model.CategoryMatch
		want    []string
	}{
		{
			name:    "nil matches",
			matches: nil,
			want:    []string{},
		},
		{
			name:    "single side of a pair is untouched",
			text:    "sem pistas",
			matches: []model.CategoryMatch{match(CodeSocialRights), match(CodeEnvironment)},
			want:    []string{CodeSocialRights, CodeEnvironment},
		},
		{
			name:    "both rules apply independently",
			text:    "policiais militares com isenção",
			matches: []model.CategoryMatch{match(CodeTaxIncrease), match(CodeTaxExemption), match(CodeCategoryBenefits), match(CodeSocialRights)},
			want:    []string{CodeTaxExemption, CodeCategoryBenefits},
		},
		{
			name:    "fallbacks when no cue present",
			text:    "texto neutro",
			matches: []model.CategoryMatch{match(CodeCategoryBenefits), match(CodeSocialRights), match(CodeTaxIncrease), match(CodeTaxExemption)},
			want:    []string{CodeSocialRights, CodeTaxIncrease},
		},
		{
			name:    "order of survivors is preserved",
			text:    "juiz",
			matches: []model.CategoryMatch{match(CodeEnvironment), match(CodeSocialRights), match(CodeCategoryBenefits)},
			want:    []string{CodeEnvironment, CodeCategoryBenefits},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(disambiguate(tt.matches, tt.text)))
		})
	}
}

func TestDisambiguate_RuleOrderIndependent(t *testing.T) {
	matches := []model.CategoryMatch{
		{CategoryCode: CodeTaxExemption},
		{CategoryCode: CodeSocialRights},
		{CategoryCode: CodeTaxIncrease},
		{CategoryCode: CodeCategoryBenefits},
	}
	text := "servidores com redução de alíquota"

	forward := codes(disambiguate(matches, text))

	saved := conflictRules
	defer func() { conflictRules = saved }()
	conflictRules = []conflictRule{saved[1], saved[0]}

	assert.Equal(t, forward, codes(disambiguate(matches, text)))
}
