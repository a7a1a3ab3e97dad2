package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	reply func(prompt string) (string, error)
	calls atomic.Int32
	mu    sync.Mutex
	seen  []string
}

func (f *fakeClient) Complete(_ context.Context, _, prompt string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, prompt)
	f.mu.Unlock()
	return f.reply(prompt)
}

var testCategories = []model.Category{
	{Code: "MEIO_AMBIENTE", Name: "Meio ambiente"},
	{Code: "SEGURANCA_JUSTICA", Name: "Segurança e justiça"},
}

func newTestEnricher(t *testing.T, client Client) *Enricher {
	t.Helper()
	e, err := NewEnricher(client, Config{RateLimit: 6000, MaxRetries: 3, RetryDelay: time.Millisecond}, testCategories, nil)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestNewEnricher_Validation(t *testing.T) {
	_, err := NewEnricher(nil, Config{}, testCategories, nil)
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = NewEnricher(&fakeClient{}, Config{}, nil, nil)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestEnricher_Classify(t *testing.T) {
	client := &fakeClient{reply: func(string) (string, error) {
		return `{"categories":[{"code":"MEIO_AMBIENTE","confidence":0.85},{"code":"INVENTADO","confidence":1}]}`, nil
	}}
	e := newTestEnricher(t, client)
	prop := model.Proposition{ID: 7, Summary: "Dispõe sobre queimadas no cerrado"}

	got, err := e.Classify(context.Background(), prop)
	require.NoError(t, err)
	assert.Equal(t, []model.CategoryMatch{{CategoryCode: "MEIO_AMBIENTE", Confidence: 0.85}}, got)

	// Second call is served from cache.
	_, err = e.Classify(context.Background(), prop)
	require.NoError(t, err)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestEnricher_Classify_EmptySummary(t *testing.T) {
	client := &fakeClient{reply: func(string) (string, error) { return "", errors.New("unexpected") }}
	e := newTestEnricher(t, client)

	got, err := e.Classify(context.Background(), model.Proposition{ID: 1})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, client.calls.Load())
}

func TestEnricher_Classify_RetriesTransientErrors(t *testing.T) {
	var attempts atomic.Int32
	client := &fakeClient{reply: func(string) (string, error) {
		if attempts.Add(1) < 3 {
			return "", common.Retryable(errors.New("connection reset"))
		}
		return `{"categories":[{"code":"SEGURANCA_JUSTICA","confidence":0.5}]}`, nil
	}}
	e := newTestEnricher(t, client)

	got, err := e.Classify(context.Background(), model.Proposition{ID: 2, Summary: "Altera o Código Penal"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestEnricher_Classify_PermanentError(t *testing.T) {
	client := &fakeClient{reply: func(string) (string, error) {
		return "", common.Permanent(errors.New("invalid api key"))
	}}
	e := newTestEnricher(t, client)

	_, err := e.Classify(context.Background(), model.Proposition{ID: 3, Summary: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrEnrichmentFailed)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestEnricher_Classify_MalformedReply(t *testing.T) {
	client := &fakeClient{reply: func(string) (string, error) { return "desculpe, não sei", nil }}
	e := newTestEnricher(t, client)

	_, err := e.Classify(context.Background(), model.Proposition{ID: 4, Summary: "x"})
	assert.ErrorIs(t, err, common.ErrEnrichmentFailed)
}

func TestEnricher_ClassifyBatch(t *testing.T) {
	client := &fakeClient{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, "falha") {
			return "", common.Permanent(errors.New("boom"))
		}
		return `{"categories":[{"code":"MEIO_AMBIENTE","confidence":0.7}]}`, nil
	}}
	e := newTestEnricher(t, client)

	props := []model.Proposition{
		{ID: 1, Summary: "Protege nascentes"},
		{ID: 2, Summary: "falha"},
		{ID: 3, Summary: "Cria parque nacional"},
	}
	got, err := e.ClassifyBatch(context.Background(), props, 2)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, int64(1), got[0].PropositionID)
	assert.NoError(t, got[0].Err)
	assert.Len(t, got[0].Matches, 1)
	assert.Error(t, got[1].Err)
	assert.Equal(t, 1, FailedCount(got))
}

func TestEnricher_ClassifyBatch_Canceled(t *testing.T) {
	client := &fakeClient{reply: func(string) (string, error) { return `{"categories":[]}`, nil }}
	e := newTestEnricher(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ClassifyBatch(ctx, []model.Proposition{{ID: 1, Summary: "a"}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
