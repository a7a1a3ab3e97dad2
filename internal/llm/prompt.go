package llm

import (
	"fmt"
	"strings"

	"github.com/Veraticus/civic-flow/internal/model"
)

const systemPrompt = `Você classifica proposições legislativas brasileiras por impacto cívico. ` +
	`Responda somente com JSON no formato {"categories":[{"code":"CODIGO","confidence":0.0}]}. ` +
	`Use apenas os códigos fornecidos. Se nenhum se aplicar, responda {"categories":[]}.`

// buildPrompt lists the allowed categories and the proposition text.
func buildPrompt(prop model.Proposition, categories []model.Category) string {
	var b strings.Builder

	b.WriteString("Categorias:\n")
	for _, c := range categories {
		if c.Description != "" {
			fmt.Fprintf(&b, "- %s: %s. %s\n", c.Code, c.Name, c.Description)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", c.Code, c.Name)
		}
	}

	fmt.Fprintf(&b, "\nProposição: %s\n", prop.Label())
	fmt.Fprintf(&b, "Ementa: %s\n", prop.Summary)
	if prop.Keywords != "" {
		fmt.Fprintf(&b, "Palavras-chave: %s\n", prop.Keywords)
	}

	return b.String()
}
