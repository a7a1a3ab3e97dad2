package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/civic-flow/internal/model"
)

type categoriesResponse struct {
	Categories []struct {
		Code       string  `json:"code"`
		Confidence float64 `json:"confidence"`
	} `json:"categories"`
}

// parseCategories decodes a {"categories":[{"code","confidence"}]} reply.
// Unknown codes are dropped, confidence is clamped to [0,1], and a code
// repeated in the reply keeps its highest confidence. Results follow the
// order of known.
func parseCategories(content string, known []string) ([]model.CategoryMatch, []string, error) {
	content = cleanMarkdownWrapper(content)

	var resp categoriesResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	allowed := make(map[string]bool, len(known))
	for _, code := range known {
		allowed[code] = true
	}

	best := make(map[string]float64)
	var unknown []string
	for _, c := range resp.Categories {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if !allowed[code] {
			unknown = append(unknown, c.Code)
			continue
		}
		conf := clamp(c.Confidence)
		if prev, ok := best[code]; !ok || conf > prev {
			best[code] = conf
		}
	}

	var matches []model.CategoryMatch
	for _, code := range known {
		if conf, ok := best[code]; ok {
			matches = append(matches, model.CategoryMatch{CategoryCode: code, Confidence: conf})
		}
	}
	return matches, unknown, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// cleanMarkdownWrapper strips a ```json fence some models wrap replies in.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
