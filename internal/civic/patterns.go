package civic

import "github.com/Veraticus/civic-flow/internal/model"

// Category codes shipped with the default table.
const (
	CodePublicSpending     = "GASTOS_PUBLICOS"
	CodeTaxIncrease        = "TRIBUTACAO_AUMENTO"
	CodeTaxExemption       = "TRIBUTACAO_ISENCAO"
	CodeCategoryBenefits   = "BENEFICIOS_CATEGORIAS"
	CodeSocialRights       = "DIREITOS_SOCIAIS"
	CodeSecurityJustice    = "SEGURANCA_JUSTICA"
	CodeEnvironment        = "MEIO_AMBIENTE"
	CodeEconomicRegulation = "REGULACAO_ECONOMICA"
	CodeInstitutional      = "POLITICA_INSTITUCIONAL"
)

// TableVersion identifies the revision of DefaultTable. Bump it whenever a
// pattern changes, since classification outcomes change with it.
const TableVersion = "2024.3"

// DefaultTable returns the versioned category pattern table.
//
// Patterns are matched case-insensitively against proposition summaries
// written in Portuguese. Accented letters are written as classes such as
// [çc] so that summaries published without diacritics still match. Word
// boundaries (\b) only appear next to ASCII letters because RE2 boundaries
// are ASCII-only.
func DefaultTable() PatternTable {
	return PatternTable{
		{
			Code: CodePublicSpending,
			Patterns: []string{
				`or[çc]amento`,
				`despesas? p[úu]blicas?`,
				`gastos? p[úu]blicos?`,
				`cr[ée]dito (suplementar|especial|extraordin[áa]rio)`,
				`dota[çc][ãa]o or[çc]ament[áa]ria`,
				`teto de gastos`,
				`responsabilidade fiscal`,
				`emendas? parlamentar(es)?`,
				`transfer[êe]ncias? (de recursos|volunt[áa]rias?)`,
			},
		},
		{
			Code: CodeTaxIncrease,
			Patterns: []string{
				`(institui|cria(r|[çc][ãa]o)?)\s+(d[aoe]\s+|um\s+|uma\s+|a\s+|o\s+)?(nov[oa]\s+)?(imposto|tributo|taxa|contribui[çc][ãa]o)`,
				`aumento d[aeo]s? (al[íi]quotas?|impostos?|tributos?|carga tribut[áa]ria)`,
				`eleva(r|[çc][ãa]o)? (d[aeo]s? )?al[íi]quotas?`,
				`majora[çc][ãa]o`,
				`nova contribui[çc][ãa]o`,
				`tributa[çc][ãa]o (sobre|de|dos) (grandes fortunas|dividendos|lucros)`,
				`imposto sobre grandes fortunas`,
			},
		},
		{
			Code: CodeTaxExemption,
			Patterns: []string{
				`isen[çc][ãa]o`,
				`\bisent[ao]s?\b`,
				`redu[çc][ãa]o d[aeo]s? (al[íi]quotas?|impostos?|tributos?|carga tribut[áa]ria)`,
				`incentivos? fisca(l|is)`,
				`benef[íi]cios? fisca(l|is)`,
				`desonera[çc][ãa]o`,
				`imunidade tribut[áa]ria`,
				`al[íi]quota zero`,
				`anistia (fiscal|tribut[áa]ria)`,
			},
		},
		{
			Code: CodeCategoryBenefits,
			Patterns: []string{
				`servidor(es)? p[úu]blicos?`,
				`aposentadoria (especial )?(d[aeo]s? )?(servidor|militar|policia|magistrad|juiz)`,
				`\bmilitares\b`,
				`\bpoliciais\b`,
				`magistrad[ao]s?`,
				`membros? do minist[ée]rio p[úu]blico`,
				`gratifica[çc][ãa]o`,
				`regime jur[íi]dico d[aeo]s? servidor`,
			},
		},
		{
			Code: CodeSocialRights,
			Patterns: []string{
				`previd[êe]ncia social`,
				`seguridade social`,
				`assist[êe]ncia social`,
				`benef[íi]cio de presta[çc][ãa]o continuada`,
				`bolsa fam[íi]lia`,
				`sal[áa]rio m[íi]nimo`,
				`direitos sociais`,
				`seguro[- ]desemprego`,
				`sa[úu]de p[úu]blica|\bSUS\b|sistema [úu]nico de sa[úu]de`,
			},
		},
		{
			Code: CodeSecurityJustice,
			Patterns: []string{
				`seguran[çc]a p[úu]blica`,
				`c[óo]digo (de processo )?penal`,
				`\bcrimes?\b`,
				`sistema prisional|pres[íi]dios?`,
				`organiza[çc][ãa]o criminosa|organiza[çc][õo]es criminosas`,
				`porte de armas?|armas? de fogo|estatuto do desarmamento`,
				`viol[êe]ncia (dom[ée]stica|contra a mulher)`,
				`tr[áa]fico de (drogas|entorpecentes|pessoas)`,
			},
		},
		{
			Code: CodeEnvironment,
			Patterns: []string{
				`meio ambiente`,
				`ambienta(l|is)`,
				`desmatamento`,
				`florestas?`,
				`mudan[çc]as? clim[áa]ticas?`,
				`unidades? de conserva[çc][ãa]o`,
				`agrot[óo]xicos?`,
				`recursos h[íi]dricos`,
				`res[íi]duos s[óo]lidos`,
			},
		},
		{
			Code: CodeEconomicRegulation,
			Patterns: []string{
				`microempresas?|empresas? de pequeno porte`,
				`defesa do consumidor`,
				`ag[êe]ncias? reguladoras?`,
				`livre concorr[êe]ncia|liberdade econ[ôo]mica`,
				`sistema financeiro`,
				`com[ée]rcio exterior`,
				`consolida[çc][ãa]o das leis do trabalho|\bCLT\b`,
				`licita[çc][ãa]o|licita[çc][õo]es|contratos administrativos`,
				`privatiza[çc][ãa]o|desestatiza[çc][ãa]o`,
			},
		},
		{
			Code: CodeInstitutional,
			Patterns: []string{
				`elei[çc][õo]es|eleitora(l|is)`,
				`partidos? pol[íi]ticos?`,
				`reforma pol[íi]tica`,
				`regimento interno`,
				`emenda constitucional|emenda [àa] constitui[çc][ãa]o`,
				`tribunal de contas`,
				`foro (privilegiado|por prerrogativa)`,
				`improbidade administrativa`,
				`transpar[êe]ncia|acesso [àa] informa[çc][ãa]o`,
			},
		},
	}
}

// DefaultCategories returns the display metadata for every code in DefaultTable.
func DefaultCategories() []model.Category {
	return []model.Category{
		{Code: CodePublicSpending, Name: "Gastos públicos", Description: "Orçamento, créditos e aplicação de recursos públicos"},
		{Code: CodeTaxIncrease, Name: "Aumento de tributos", Description: "Criação ou majoração de impostos, taxas e contribuições"},
		{Code: CodeTaxExemption, Name: "Isenção tributária", Description: "Isenções, reduções, incentivos e benefícios fiscais"},
		{Code: CodeCategoryBenefits, Name: "Benefícios a categorias", Description: "Vantagens para servidores, militares, policiais e carreiras jurídicas"},
		{Code: CodeSocialRights, Name: "Direitos sociais", Description: "Previdência, assistência social, saúde e renda mínima"},
		{Code: CodeSecurityJustice, Name: "Segurança e justiça", Description: "Segurança pública, legislação penal e sistema prisional"},
		{Code: CodeEnvironment, Name: "Meio ambiente", Description: "Proteção ambiental, clima, florestas e recursos naturais"},
		{Code: CodeEconomicRegulation, Name: "Regulação econômica", Description: "Regras de mercado, empresas, consumo, trabalho e contratações"},
		{Code: CodeInstitutional, Name: "Política institucional", Description: "Eleições, partidos, funcionamento dos poderes e controle"},
	}
}
