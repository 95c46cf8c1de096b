package hub

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillshub/internal/faults"
)

func TestSearchParsesResultsAndClampsLimit(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/search", r.URL.Path)
		require.Equal(t, "writer", r.URL.Query().Get("q"))
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"slug": "writer-helper", "displayName": "Writer Helper", "score": 0.92, "version": "1.2.0"},
				{"score": 0.5}, // no slug, dropped
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	hits, err := c.Search(context.Background(), "writer", 500)
	require.NoError(t, err)
	assert.Equal(t, "50", gotLimit)
	require.Len(t, hits, 1)
	assert.Equal(t, "writer-helper", hits[0].Slug)
	assert.Equal(t, "1.2.0", hits[0].Version)
}

func TestGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	_, err := c.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, faults.NotAvailable, faults.KindOf(err))
}

func TestGetMergesVersionAndOwner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/skills/writer-helper", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"skill": map[string]any{
				"slug":        "writer-helper",
				"displayName": "Writer Helper",
				"stats":       map[string]any{"downloads": 42},
			},
			"latestVersion": map[string]any{"version": "1.2.0", "changelog": "fixes"},
			"owner":         map[string]any{"handle": "acme"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	d, err := c.Get(context.Background(), "writer-helper")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", d.Version)
	assert.Equal(t, "acme", d.OwnerHandle)
	assert.Equal(t, uint64(42), d.Downloads)
}

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDownloadExtractsSkippingJunk(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"SKILL.md":               "---\nname: writer-helper\n---\n",
		"ref/guide.md":           "guide",
		"__MACOSX/SKILL.md":      "junk",
		".DS_Store":              "junk",
		"ref/.hidden/secret.txt": "junk",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/download", r.URL.Path)
		require.Equal(t, "writer-helper", r.URL.Query().Get("slug"))
		w.Write(archive)
	}))
	defer srv.Close()

	dest := t.TempDir()
	c := New(srv.URL, 5*time.Second)
	dir, err := c.Download(context.Background(), "writer-helper", "", dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "writer-helper"), filepath.Clean(dir))

	_, err = os.Stat(filepath.Join(dir, "SKILL.md"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "ref", "guide.md"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "__MACOSX"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, ".DS_Store"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "ref", ".hidden"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractZipRejectsPathEscape(t *testing.T) {
	archive := zipArchive(t, map[string]string{"../evil.txt": "x"})
	err := extractZip(archive, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, faults.Validation, faults.KindOf(err))
}
