package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v81/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/campus-rag/internal/domain"
)

type entry struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Path string `json:"path"`
}

type file struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
}

func newTestFetcher(t *testing.T, mux *http.ServeMux) *Fetcher {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	gh := github.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	gh.BaseURL = base

	return NewFetcher(&Client{Client: gh}, "campus", "handbook", "docs", "", nil)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func serveFile(mux *http.ServeMux, p, content string) {
	mux.HandleFunc("/repos/campus/handbook/contents/"+p, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, file{
			Type:     "file",
			Name:     p,
			Path:     p,
			Encoding: "base64",
			Content:  base64.StdEncoding.EncodeToString([]byte(content)),
			SHA:      "sha-" + p,
		})
	})
}

func TestFetcher_Load(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/campus/handbook/contents/docs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []entry{
			{Type: "file", Name: "welcome.md", Path: "docs/welcome.md"},
			{Type: "file", Name: "logo.png", Path: "docs/logo.png"},
			{Type: "dir", Name: "policies", Path: "docs/policies"},
		})
	})
	mux.HandleFunc("/repos/campus/handbook/contents/docs/policies", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []entry{
			{Type: "file", Name: "parking.txt", Path: "docs/policies/parking.txt"},
			{Type: "file", Name: "missing.txt", Path: "docs/policies/missing.txt"},
		})
	})
	serveFile(mux, "docs/welcome.md", "# Welcome Week\n\nOrientation starts Monday.")
	serveFile(mux, "docs/policies/parking.txt", "Permits are required in lot B.")
	mux.HandleFunc("/repos/campus/handbook/contents/docs/policies/missing.txt", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	f := newTestFetcher(t, mux)

	paths, err := f.ListDocs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"welcome.md", "policies/parking.txt", "policies/missing.txt"}, paths)

	docs, failed, err := f.Load(context.Background(), domain.AdminCorpus)
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "welcome.md", docs[0].ID)
	assert.Equal(t, "Welcome Week", docs[0].Title)
	assert.Equal(t, domain.AdminCorpus, docs[0].Corpus)
	assert.Equal(t, "policies/parking.txt", docs[1].ID)
	assert.Equal(t, "Permits are required in lot B.", docs[1].Text)

	require.Len(t, failed, 1)
	assert.Equal(t, "policies/missing.txt", failed[0].Path)
}

func TestFetcher_ListFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/campus/handbook/contents/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Server Error"}`, http.StatusInternalServerError)
	})

	_, _, err := newTestFetcher(t, mux).Load(context.Background(), domain.AdminCorpus)
	assert.Error(t, err)
}

func TestFetcher_LatestCommit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/campus/handbook/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "docs", r.URL.Query().Get("path"))
		writeJSON(w, []map[string]string{{"sha": "abc123"}})
	})

	sha, err := newTestFetcher(t, mux).GetLatestCommitSHA(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", sha)
}
