package ourairports

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"unidrome/internal/fetch"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/airports.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("id,type\n1,small_airport\n"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := &Fetcher{Client: fetch.New(zap.NewNop()), Logger: zap.NewNop(), BaseURL: srv.URL + "/", DataDir: dir}
	require.NoError(t, f.Fetch(context.Background()))

	b, err := os.ReadFile(filepath.Join(dir, "world", "ourairports", "airports.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,type\n1,small_airport\n", string(b))
	_, err = os.Stat(filepath.Join(dir, "world", "ourairports", "runways.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestFetchUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := &Fetcher{Client: fetch.New(zap.NewNop()), Logger: zap.NewNop(), BaseURL: srv.URL + "/", DataDir: t.TempDir()}
	assert.Error(t, f.Fetch(context.Background()))
}
