package extract

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Veraticus/civic-flow/internal/model"
)

// Result holds the rows parsed from one export and the number of rows that
// were skipped as invalid.
type Result[T any] struct {
	Items   []T
	Skipped int
}

// Column sets for each dataset. Canonical names double as the newest
// header spelling.
var (
	DeputyColumns = AliasSet{
		"id":             {Aliases: []string{"uri", "idDeputado", "ideCadastro"}, Required: true},
		"nome":           {Aliases: []string{"nomeParlamentar", "nomeEleitoral"}, Required: true},
		"nomeCivil":      {},
		"siglaPartido":   {Aliases: []string{"partido", "sgPartido"}},
		"siglaUf":        {Aliases: []string{"uf", "sgUF"}},
		"siglaSexo":      {Aliases: []string{"sexo"}},
		"email":          {},
		"dataNascimento": {},
	}

	PropositionColumns = AliasSet{
		"id":               {Aliases: []string{"uri", "idProposicao"}, Required: true},
		"siglaTipo":        {Aliases: []string{"tipo"}},
		"numero":           {},
		"ano":              {},
		"ementa":           {Aliases: []string{"resumo", "summary"}, Required: true},
		"ementaDetalhada":  {},
		"keywords":         {Aliases: []string{"indexacao", "palavrasChave"}},
		"uri":              {},
		"dataApresentacao": {},
	}

	VoteColumns = AliasSet{
		"idVotacao":     {Aliases: []string{"votacao_id"}, Required: true},
		"deputado_id":   {Aliases: []string{"idDeputado", "deputado_uri"}, Required: true},
		"voto":          {Aliases: []string{"tipoVoto"}, Required: true},
		"dataHoraVoto":  {Aliases: []string{"dataHora", "data"}},
		"proposicao_id": {Aliases: []string{"idProposicao", "proposicao_uri"}},
	}

	ExpenseColumns = AliasSet{
		"ideDocumento":  {Aliases: []string{"idDocumento", "codDocumento"}, Required: true},
		"nuDeputadoId":  {Aliases: []string{"ideCadastro", "idDeputado"}, Required: true},
		"numAno":        {Aliases: []string{"ano"}, Required: true},
		"numMes":        {Aliases: []string{"mes"}, Required: true},
		"txtDescricao":  {Aliases: []string{"tipoDespesa"}},
		"txtFornecedor": {Aliases: []string{"nomeFornecedor"}},
		"txtCNPJCPF":    {Aliases: []string{"cnpjCpfFornecedor"}},
		"vlrLiquido":    {Aliases: []string{"valorLiquido"}, Required: true},
		"datEmissao":    {Aliases: []string{"dataDocumento"}},
	}
)

// rowFunc converts one record. Returning an error skips the row.
type rowFunc[T any] func(Record) (T, error)

func parse[T any](r io.Reader, dataset string, columns AliasSet, fn rowFunc[T], opts ...Option) (Result[T], error) {
	var res Result[T]

	reader, err := NewReader(r, columns, opts...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", dataset, err)
	}

	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Malformed quoting on one line; keep going.
			res.Skipped++
			slog.Debug("skipping unreadable row", "dataset", dataset, "error", err)
			continue
		}

		item, err := fn(rec)
		if err != nil {
			res.Skipped++
			slog.Debug("skipping invalid row",
				"dataset", dataset,
				"line", rec.Line,
				"error", err)
			continue
		}
		res.Items = append(res.Items, item)
	}

	if res.Skipped > 0 {
		slog.Info("skipped invalid rows", "dataset", dataset, "skipped", res.Skipped, "parsed", len(res.Items))
	}
	return res, nil
}

// ParseDeputies parses the deputies export.
func ParseDeputies(r io.Reader, opts ...Option) (Result[model.Deputy], error) {
	return parse(r, "deputies", DeputyColumns, func(rec Record) (model.Deputy, error) {
		id, err := parseID(rec.Get("id"))
		if err != nil {
			return model.Deputy{}, err
		}
		name := rec.Get("nome")
		if name == "" {
			return model.Deputy{}, fmt.Errorf("deputy %d has no name", id)
		}
		birth, err := parseDate(rec.Get("dataNascimento"))
		if err != nil {
			return model.Deputy{}, err
		}
		return model.Deputy{
			ID:        id,
			Name:      name,
			CivilName: rec.Get("nomeCivil"),
			Party:     rec.Get("siglaPartido"),
			State:     rec.Get("siglaUf"),
			Sex:       rec.Get("siglaSexo"),
			Email:     rec.Get("email"),
			BirthDate: birth,
		}, nil
	}, opts...)
}

// ParsePropositions parses a propositions export. Rows without a summary
// are kept; they are simply never classified.
func ParsePropositions(r io.Reader, opts ...Option) (Result[model.Proposition], error) {
	return parse(r, "propositions", PropositionColumns, func(rec Record) (model.Proposition, error) {
		id, err := parseID(rec.Get("id"))
		if err != nil {
			return model.Proposition{}, err
		}
		number, err := parseInt(rec.Get("numero"))
		if err != nil {
			return model.Proposition{}, err
		}
		year, err := parseInt(rec.Get("ano"))
		if err != nil {
			return model.Proposition{}, err
		}
		presented, err := parseDate(rec.Get("dataApresentacao"))
		if err != nil {
			return model.Proposition{}, err
		}

		summary := rec.Get("ementa")
		if summary == "" {
			summary = rec.Get("ementaDetalhada")
		}

		return model.Proposition{
			ID:          id,
			TypeAcronym: rec.Get("siglaTipo"),
			Number:      number,
			Year:        year,
			Summary:     summary,
			Keywords:    rec.Get("keywords"),
			URI:         rec.Get("uri"),
			PresentedAt: presented,
		}, nil
	}, opts...)
}

// ParseVotes parses a roll-call votes export. When the export has no
// proposition column the proposition is taken from the voting ID, which is
// published as "<proposition>-<sequence>".
func ParseVotes(r io.Reader, opts ...Option) (Result[model.Vote], error) {
	return parse(r, "votes", VoteColumns, func(rec Record) (model.Vote, error) {
		votingID := rec.Get("idVotacao")
		if votingID == "" {
			return model.Vote{}, errors.New("missing voting id")
		}
		deputyID, err := parseID(rec.Get("deputado_id"))
		if err != nil {
			return model.Vote{}, err
		}
		vote, ok := normalizeVote(rec.Get("voto"))
		if !ok {
			return model.Vote{}, fmt.Errorf("unknown vote %q", rec.Get("voto"))
		}
		at, err := parseDate(rec.Get("dataHoraVoto"))
		if err != nil {
			return model.Vote{}, err
		}

		v := model.Vote{VotingID: votingID, DeputyID: deputyID, Vote: vote}
		if at != nil {
			v.VotedAt = *at
		}

		propRaw := rec.Get("proposicao_id")
		if propRaw == "" {
			propRaw, _, _ = strings.Cut(votingID, "-")
		}
		if propID, err := parseID(propRaw); err == nil {
			v.PropositionID = &propID
		}
		return v, nil
	}, opts...)
}

// ParseExpenses parses a parliamentary quota expenses export.
func ParseExpenses(r io.Reader, opts ...Option) (Result[model.Expense], error) {
	return parse(r, "expenses", ExpenseColumns, func(rec Record) (model.Expense, error) {
		docID := rec.Get("ideDocumento")
		if docID == "" {
			return model.Expense{}, errors.New("missing document id")
		}
		deputyID, err := parseID(rec.Get("nuDeputadoId"))
		if err != nil {
			return model.Expense{}, err
		}
		year, err := parseInt(rec.Get("numAno"))
		if err != nil {
			return model.Expense{}, err
		}
		month, err := parseInt(rec.Get("numMes"))
		if err != nil {
			return model.Expense{}, err
		}
		if month < 1 || month > 12 {
			return model.Expense{}, fmt.Errorf("month %d out of range", month)
		}
		value, err := parseDecimal(rec.Get("vlrLiquido"))
		if err != nil {
			return model.Expense{}, err
		}
		issued, err := parseDate(rec.Get("datEmissao"))
		if err != nil {
			return model.Expense{}, err
		}

		return model.Expense{
			DocumentID:  docID,
			DeputyID:    deputyID,
			Year:        year,
			Month:       month,
			Category:    rec.Get("txtDescricao"),
			Supplier:    rec.Get("txtFornecedor"),
			SupplierDoc: rec.Get("txtCNPJCPF"),
			NetValue:    value,
			IssuedAt:    issued,
		}, nil
	}, opts...)
}
