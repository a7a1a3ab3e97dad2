package download

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryETags struct {
	tags map[string]string
	mu   sync.Mutex
}

func newMemoryETags() *memoryETags {
	return &memoryETags{tags: make(map[string]string)}
}

func (m *memoryETags) GetETag(_ context.Context, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tags[url], nil
}

func (m *memoryETags) SaveETag(_ context.Context, url, etag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[url] = etag
	return nil
}

var fastRetry = service.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2,
}

func newTestDownloader(t *testing.T, cache ETagStore, opts ...Option) *Downloader {
	t.Helper()
	d, err := New(Config{Dir: t.TempDir(), Retry: fastRetry}, cache, opts...)
	require.NoError(t, err)
	return d
}

func TestDownloader_FetchConditional(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = io.WriteString(w, "id;ementa\n1;Institui taxa\n")
	}))
	defer server.Close()

	cache := newMemoryETags()
	d := newTestDownloader(t, cache)
	ctx := context.Background()
	url := server.URL + "/proposicoes/csv/proposicoes-2024.csv"

	first, err := d.Fetch(ctx, url)
	require.NoError(t, err)
	assert.False(t, first.NotModified)
	assert.Equal(t, `"v1"`, first.ETag)
	assert.Equal(t, "proposicoes-2024.csv", filepath.Base(first.Path))

	body, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Institui taxa")

	second, err := d.Fetch(ctx, url)
	require.NoError(t, err)
	assert.True(t, second.NotModified)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, int32(2), requests.Load())
}

func TestDownloader_RefetchesWhenLocalCopyMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "" {
			t.Errorf("unexpected conditional request")
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = io.WriteString(w, "x")
	}))
	defer server.Close()

	cache := newMemoryETags()
	d := newTestDownloader(t, cache)
	url := server.URL + "/deputados.csv"
	require.NoError(t, cache.SaveETag(context.Background(), url, `"v1"`))

	res, err := d.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.False(t, res.NotModified)
}

func TestDownloader_RetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	d := newTestDownloader(t, nil)
	res, err := d.Fetch(context.Background(), server.URL+"/deputados.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Bytes)
	assert.Equal(t, int32(3), requests.Load())
}

func TestDownloader_RetriesRateLimit(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	d := newTestDownloader(t, nil)
	_, err := d.Fetch(context.Background(), server.URL+"/deputados.csv")
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())
}

func TestDownloader_ClientErrorIsPermanent(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	d := newTestDownloader(t, nil)
	_, err := d.Fetch(context.Background(), server.URL+"/proposicoes-1900.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDownloadFailed)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), requests.Load())
}

func TestDownloader_FailedTransferKeepsPreviousCopy(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			_, _ = io.WriteString(w, "original")
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := newTestDownloader(t, nil)
	url := server.URL + "/deputados.csv"
	first, err := d.Fetch(context.Background(), url)
	require.NoError(t, err)

	_, err = d.Fetch(context.Background(), url)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMaxRetries)

	body, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(body))
}

func TestDownloader_Progress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "0123456789")
	}))
	defer server.Close()

	var seen int64
	var name string
	d := newTestDownloader(t, nil, WithProgress(func(_ int64, n string) io.Writer {
		name = n
		return writerFunc(func(p []byte) (int, error) {
			seen += int64(len(p))
			return len(p), nil
		})
	}))

	_, err := d.Fetch(context.Background(), server.URL+"/votacoesVotos-2024.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(10), seen)
	assert.Equal(t, "votacoesVotos-2024.csv", name)
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestDownloader_LocalPath(t *testing.T) {
	d := newTestDownloader(t, nil)

	_, err := d.LocalPath("https://example.org/")
	assert.Error(t, err)

	p, err := d.LocalPath("https://www.camara.leg.br/cotas/Ano-2024.csv.zip?x=1")
	require.NoError(t, err)
	assert.Equal(t, "Ano-2024.csv.zip", filepath.Base(p))
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestExtractCSV(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "Ano-2024.csv.zip")

	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	readme, err := zw.Create("LEIAME.txt")
	require.NoError(t, err)
	_, _ = io.WriteString(readme, "leia")
	entry, err := zw.Create("nested/Ano-2024.csv")
	require.NoError(t, err)
	_, _ = io.WriteString(entry, "ideDocumento;vlrLiquido\n1;10,00\n")
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	out, err := ExtractCSV(zipPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Ano-2024.csv"), out)

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ideDocumento")
}

func TestExtractCSV_NoCSV(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "vazio.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("LEIAME.txt")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = ExtractCSV(zipPath)
	assert.Error(t, err)
}

func TestCatalog_Sources(t *testing.T) {
	sources := Catalog{BaseURL: "http://local/arquivos/", QuotaURL: "http://local/cotas"}.Sources([]int{2023, 2024})
	require.Len(t, sources, 7)

	assert.Equal(t, DatasetDeputies, sources[0].Dataset)
	assert.Equal(t, "http://local/arquivos/deputados/csv/deputados.csv", sources[0].URL)
	assert.Equal(t, "http://local/arquivos/proposicoes/csv/proposicoes-2023.csv", sources[1].URL)
	assert.Equal(t, "http://local/arquivos/votacoesVotos/csv/votacoesVotos-2023.csv", sources[2].URL)
	assert.Equal(t, "http://local/cotas/Ano-2023.csv.zip", sources[3].URL)
	assert.Equal(t, 2024, sources[6].Year)

	defaults := Catalog{}.Sources(nil)
	require.Len(t, defaults, 1)
	assert.Equal(t, DefaultBaseURL+"/deputados/csv/deputados.csv", defaults[0].URL)
}
