package ghcontent_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/ghcontent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const contentsPath = "/repos/owner/site/contents/public/data.json"

// fakeRepo emulates the contents API for a single file
type fakeRepo struct {
	mu        sync.Mutex
	content   []byte
	sha       string
	puts      []map[string]interface{}
	conflicts int // number of PUTs to reject with 409
}

func (f *fakeRepo) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
		if r.URL.Path != contentsPath {
			http.NotFound(w, r)
			return
		}

		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "main", r.URL.Query().Get("ref"))
			if f.sha == "" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"message":"Not Found"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"type":     "file",
				"encoding": "base64",
				"path":     "public/data.json",
				"sha":      f.sha,
				"content":  base64.StdEncoding.EncodeToString(f.content),
			})
		case http.MethodPut:
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.puts = append(f.puts, body)
			if f.conflicts > 0 {
				f.conflicts--
				f.sha = f.sha + "x"
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"message":"public/data.json does not match"}`))
				return
			}
			decoded, err := base64.StdEncoding.DecodeString(body["content"].(string))
			require.NoError(t, err)
			f.content = decoded
			f.sha = "sha-" + string(rune('a'+len(f.puts)))
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"content": map[string]interface{}{"sha": f.sha},
				"commit":  map[string]interface{}{"sha": "commit-1", "html_url": "https://github.com/owner/site/commit/commit-1"},
			})
		}
	})
}

func newClient(t *testing.T, srv *httptest.Server) *ghcontent.Client {
	c, err := ghcontent.New(&config.GitHubConfig{
		Token:      "ghp_test",
		Repository: "owner/site",
		Branch:     "main",
		APIBaseURL: srv.URL,
		Timeout:    5,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestPublish_CreatesFileWithoutSHA(t *testing.T) {
	repo := &fakeRepo{}
	srv := httptest.NewServer(repo.handler(t))
	defer srv.Close()

	commit, err := newClient(t, srv).Publish(context.Background(), "public/data.json", []byte(`{"a":1}`), "Update content from admin panel", 3)
	require.NoError(t, err)

	assert.Equal(t, "commit-1", commit.SHA)
	assert.False(t, commit.Unchanged)
	assert.Equal(t, 1, commit.Attempts)
	require.Len(t, repo.puts, 1)
	assert.NotContains(t, repo.puts[0], "sha")
	assert.Equal(t, "main", repo.puts[0]["branch"])
	assert.Equal(t, "Update content from admin panel", repo.puts[0]["message"])
	assert.Equal(t, `{"a":1}`, string(repo.content))
}

func TestPublish_UpdatesWithCurrentSHA(t *testing.T) {
	repo := &fakeRepo{content: []byte(`{"old":true}`), sha: "abc123"}
	srv := httptest.NewServer(repo.handler(t))
	defer srv.Close()

	_, err := newClient(t, srv).Publish(context.Background(), "public/data.json", []byte(`{"new":true}`), "msg", 3)
	require.NoError(t, err)

	require.Len(t, repo.puts, 1)
	assert.Equal(t, "abc123", repo.puts[0]["sha"])
}

func TestPublish_RetriesOnConflict(t *testing.T) {
	repo := &fakeRepo{content: []byte(`{}`), sha: "s1", conflicts: 1}
	srv := httptest.NewServer(repo.handler(t))
	defer srv.Close()

	commit, err := newClient(t, srv).Publish(context.Background(), "public/data.json", []byte(`{"v":2}`), "msg", 3)
	require.NoError(t, err)

	assert.Equal(t, 2, commit.Attempts)
	require.Len(t, repo.puts, 2)
	assert.Equal(t, "s1", repo.puts[0]["sha"])
	assert.Equal(t, "s1x", repo.puts[1]["sha"])
}

func TestPublish_GivesUpAfterMaxAttempts(t *testing.T) {
	repo := &fakeRepo{content: []byte(`{}`), sha: "s1", conflicts: 5}
	srv := httptest.NewServer(repo.handler(t))
	defer srv.Close()

	_, err := newClient(t, srv).Publish(context.Background(), "public/data.json", []byte(`{"v":2}`), "msg", 2)
	assert.ErrorIs(t, err, ghcontent.ErrConflict)
	assert.Len(t, repo.puts, 2)
}

func TestPublish_SkipsIdenticalContent(t *testing.T) {
	repo := &fakeRepo{content: []byte(`{"same":true}`), sha: "s1"}
	srv := httptest.NewServer(repo.handler(t))
	defer srv.Close()

	commit, err := newClient(t, srv).Publish(context.Background(), "public/data.json", []byte(`{"same":true}`), "msg", 3)
	require.NoError(t, err)
	assert.True(t, commit.Unchanged)
	assert.Equal(t, "s1", commit.FileSHA)
	assert.Empty(t, repo.puts)
}

func TestGetFile(t *testing.T) {
	repo := &fakeRepo{content: []byte(`{"projects":[]}`), sha: "s1"}
	srv := httptest.NewServer(repo.handler(t))
	defer srv.Close()
	c := newClient(t, srv)

	f, err := c.GetFile(context.Background(), "public/data.json")
	require.NoError(t, err)
	assert.Equal(t, "s1", f.SHA)
	assert.JSONEq(t, `{"projects":[]}`, string(f.Content))

	_, err = c.GetFile(context.Background(), "public/missing.json")
	assert.ErrorIs(t, err, ghcontent.ErrNotFound)
}

func TestNew_Validation(t *testing.T) {
	_, err := ghcontent.New(&config.GitHubConfig{}, zap.NewNop())
	assert.ErrorIs(t, err, ghcontent.ErrNotConfigured)

	_, err = ghcontent.New(&config.GitHubConfig{Repository: "no-slash"}, zap.NewNop())
	assert.Error(t, err)
}
