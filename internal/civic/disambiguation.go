package civic

import (
	"regexp"

	"github.com/Veraticus/civic-flow/internal/model"
)

// conflictRule resolves a pair of categories that tend to fire together on
// shared vocabulary. When both are matched, the cue decides the winner: if
// the cue is present onCue is kept, otherwise the other code is kept.
type conflictRule struct {
	cue   *regexp.Regexp
	name  string
	onCue string
	other string
}

// conflictRules is evaluated in order. Each winner here is a policy
// decision; add a rule only after reviewing the pair by hand.
var conflictRules = []conflictRule{
	{
		name:  "specific beneficiaries over general social rights",
		onCue: CodeCategoryBenefits,
		other: CodeSocialRights,
		cue: regexp.MustCompile(`(?i)servidor|militar|policia|magistrad|\bju[íi]z(es|a|as)?\b|promotor|procurador|` +
			`minist[ée]rio p[úu]blico|defensor(es)? p[úu]blicos?|agentes? penitenci[áa]rios?`),
	},
	{
		name:  "exemption over tax increase",
		onCue: CodeTaxExemption,
		other: CodeTaxIncrease,
		cue: regexp.MustCompile(`(?i)isen[çc][ãa]o|\bisent|redu[çc][ãa]o|\breduz|al[íi]vio fiscal|incentivos? fisca|` +
			`imunidade tribut|desonera|benef[íi]cios? fisca|al[íi]quota zero|anistia (fisca|tribut)`),
	},
}

// disambiguate drops the losing side of every conflicting pair present in
// matches. It never adds a category and preserves the order of survivors.
func disambiguate(matches []model.CategoryMatch, text string) []model.CategoryMatch {
	if len(matches) < 2 {
		return matches
	}

	drop := make(map[string]bool)
	for _, rule := range conflictRules {
		if !hasCode(matches, rule.onCue) || !hasCode(matches, rule.other) {
			continue
		}
		if rule.cue.MatchString(text) {
			drop[rule.other] = true
		} else {
			drop[rule.onCue] = true
		}
	}

	if len(drop) == 0 {
		return matches
	}

	kept := make([]model.CategoryMatch, 0, len(matches)-len(drop))
	for _, m := range matches {
		if !drop[m.CategoryCode] {
			kept = append(kept, m)
		}
	}
	return kept
}

func hasCode(matches []model.CategoryMatch, code string) bool {
	for _, m := range matches {
		if m.CategoryCode == code {
			return true
		}
	}
	return false
}
