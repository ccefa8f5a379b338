package faa

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"unidrome/internal/fetch"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCurrentCycle(t *testing.T) {
	cases := []struct {
		today, want time.Time
	}{
		{day(2024, time.January, 25), day(2024, time.January, 25)},
		{day(2024, time.February, 21), day(2024, time.January, 25)},
		{day(2024, time.February, 22), day(2024, time.February, 22)},
		{day(2024, time.March, 20), day(2024, time.February, 22)},
		{day(2024, time.March, 21), day(2024, time.March, 21)},
		{day(2025, time.January, 1), day(2024, time.December, 26)},
		{day(2024, time.January, 1), day(2023, time.December, 28)},
		{time.Date(2024, time.February, 22, 23, 59, 0, 0, time.UTC), day(2024, time.February, 22)},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CurrentCycle(c.today), c.today.String())
	}
}

func TestArchiveName(t *testing.T) {
	assert.Equal(t, "21_Mar_2024_CSV.zip", ArchiveName(day(2024, time.March, 21)))
	assert.Equal(t, "05_Sep_2024_CSV.zip", ArchiveName(day(2024, time.September, 5)))
}

func archive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFetch(t *testing.T) {
	body := archive(t, map[string]string{
		"APT_BASE.csv":  "SITE_NO\n1\n",
		"other/FRQ.csv": "x\n",
		"README.txt":    "hi",
	})
	var requested string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := &Fetcher{Client: fetch.New(zap.NewNop()), Logger: zap.NewNop(), BaseURL: srv.URL + "/extra/", DataDir: dir}
	require.NoError(t, f.Fetch(context.Background(), day(2024, time.March, 25)))

	assert.Equal(t, "/extra/21_Mar_2024_CSV.zip", requested)
	b, err := os.ReadFile(filepath.Join(dir, "us", "faa", "nasr", "APT_BASE.csv"))
	require.NoError(t, err)
	assert.Equal(t, "SITE_NO\n1\n", string(b))
	_, err = os.Stat(filepath.Join(dir, "us", "faa", "nasr", "APT_RWY.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := &Fetcher{Client: fetch.New(zap.NewNop()), Logger: zap.NewNop(), BaseURL: srv.URL + "/", DataDir: t.TempDir()}
	err := f.Fetch(context.Background(), day(2024, time.March, 25))
	var se *fetch.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}
