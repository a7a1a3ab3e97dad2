package extract

import (
	"strings"
	"testing"

	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePropositions(t *testing.T) {
	input := `"id";"uri";"siglaTipo";"numero";"ano";"ementa";"ementaDetalhada";"keywords";"dataApresentacao"
"2417025";"https://dadosabertos.camara.leg.br/api/v2/proposicoes/2417025";"PL";"1234";"2024";"Institui taxa de fiscalização ambiental";"";"Taxa, Fiscalização";"2024-03-15T10:30:00"
"2417026";"";"PEC";"3";"2024";"";"Altera o sistema tributário nacional";"";""
"abc";"";"PL";"1";"2024";"Linha inválida";"";"";""
"2417027";"";"PL";"x";"2024";"Número inválido";"";"";""
`
	res, err := ParsePropositions(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Items, 2)

	first := res.Items[0]
	assert.Equal(t, int64(2417025), first.ID)
	assert.Equal(t, "PL 1234/2024", first.Label())
	assert.Equal(t, "Institui taxa de fiscalização ambiental", first.Summary)
	assert.Equal(t, "Taxa, Fiscalização", first.Keywords)
	require.NotNil(t, first.PresentedAt)
	assert.Equal(t, 10, first.PresentedAt.Hour())

	assert.Equal(t, "Altera o sistema tributário nacional", res.Items[1].Summary, "falls back to detailed summary")
}

func TestParsePropositions_MissingColumn(t *testing.T) {
	_, err := ParsePropositions(strings.NewReader("id;ano\n1;2024\n"))
	assert.ErrorIs(t, err, common.ErrMissingColumn)
}

func TestParseDeputies(t *testing.T) {
	input := `"uri";"nome";"nomeCivil";"siglaSexo";"dataNascimento";"ufNascimento"
"https://dadosabertos.camara.leg.br/api/v2/deputados/204554";"Fulana";"Fulana de Tal";"F";"1980-05-20";"SP"
"https://dadosabertos.camara.leg.br/api/v2/deputados/204555";"";"Sem Nome";"M";"";"RJ"
`
	res, err := ParseDeputies(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Items, 1)

	d := res.Items[0]
	assert.Equal(t, int64(204554), d.ID)
	assert.Equal(t, "Fulana de Tal", d.CivilName)
	assert.Equal(t, "", d.State, "birth state is not the represented state")
	require.NotNil(t, d.BirthDate)
	assert.Equal(t, 1980, d.BirthDate.Year())
}

func TestParseVotes(t *testing.T) {
	input := `"idVotacao";"uriVotacao";"dataHoraVoto";"voto";"deputado_id";"deputado_nome"
"2417025-55";"";"2024-05-02T18:30:12";"Sim";"204554";"Fulana"
"2417025-55";"";"2024-05-02T18:30:40";"Não";"204555";"Beltrano"
"2417025-55";"";"2024-05-02T18:31:00";"Talvez";"204556";"Ciclano"
`
	res, err := ParseVotes(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Items, 2)

	v := res.Items[0]
	assert.Equal(t, model.VoteYes, v.Vote)
	require.NotNil(t, v.PropositionID)
	assert.Equal(t, int64(2417025), *v.PropositionID)
	assert.Equal(t, 18, v.VotedAt.Hour())
	assert.Equal(t, model.VoteNo, res.Items[1].Vote)
}

func TestParseExpenses(t *testing.T) {
	input := `"txNomeParlamentar";"ideCadastro";"txtDescricao";"txtFornecedor";"txtCNPJCPF";"datEmissao";"vlrLiquido";"numMes";"numAno";"nuDeputadoId";"ideDocumento"
"Fulana";"141428";"COMBUSTÍVEIS E LUBRIFICANTES.";"Posto A";"00000000000191";"2024-04-10T00:00:00";"150,25";"4";"2024";"204554";"7654321"
"Fulana";"141428";"TELEFONIA";"Operadora";"";"";"89.90";"13";"2024";"204554";"7654322"
"Fulana";"141428";"PASSAGEM AÉREA";"Cia";"";"";"1.234,50";"5";"2024";"204554";"7654323"
`
	res, err := ParseExpenses(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped, "month 13 is rejected")
	require.Len(t, res.Items, 2)

	e := res.Items[0]
	assert.Equal(t, "7654321", e.DocumentID)
	assert.Equal(t, int64(204554), e.DeputyID, "explicit deputy id column wins over registration id")
	assert.InDelta(t, 150.25, e.NetValue, 1e-9)
	require.NotNil(t, e.IssuedAt)
	assert.InDelta(t, 1234.5, res.Items[1].NetValue, 1e-9)
}
