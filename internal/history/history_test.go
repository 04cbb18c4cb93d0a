package history_test

import (
	"path/filepath"
	"testing"

	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*history.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history")
	store, err := history.Open(&config.HistoryConfig{
		Enabled:     true,
		Path:        path,
		AuthorName:  "Test Admin",
		AuthorEmail: "admin@test.local",
	})
	require.NoError(t, err)
	return store, path
}

func TestStore_EmptyLog(t *testing.T) {
	store, _ := openStore(t)

	versions, err := store.Log(10)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestStore_RecordAndLog(t *testing.T) {
	store, _ := openStore(t)

	first, changed, err := store.Record([]byte(`{"projects":[]}`), "first publish")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, first, 40)

	second, changed, err := store.Record([]byte(`{"projects":[{"id":"a"}]}`), "second publish")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotEqual(t, first, second)

	versions, err := store.Log(0)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, second, versions[0].Hash)
	assert.Equal(t, "second publish", versions[0].Message)
	assert.Equal(t, "Test Admin", versions[0].Author)
	assert.Equal(t, first, versions[1].Hash)

	limited, err := store.Log(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_RecordUnchanged(t *testing.T) {
	store, _ := openStore(t)
	payload := []byte(`{"about":{}}`)

	hash, changed, err := store.Record(payload, "publish")
	require.NoError(t, err)
	require.True(t, changed)

	again, changed, err := store.Record(payload, "publish again")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, hash, again)

	versions, err := store.Log(0)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestStore_Read(t *testing.T) {
	store, _ := openStore(t)

	first, _, err := store.Record([]byte(`v1`), "one")
	require.NoError(t, err)
	_, _, err = store.Record([]byte(`v2`), "two")
	require.NoError(t, err)

	content, version, err := store.Read(first)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))
	assert.Equal(t, "one", version.Message)

	short, _, err := store.Read(first[:7])
	require.NoError(t, err)
	assert.Equal(t, "v1", string(short))
}

func TestStore_ReadUnknown(t *testing.T) {
	store, _ := openStore(t)
	_, _, err := store.Record([]byte(`v1`), "one")
	require.NoError(t, err)

	_, _, err = store.Read("not-a-hash")
	assert.ErrorIs(t, err, history.ErrVersionNotFound)

	_, _, err = store.Read("0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, history.ErrVersionNotFound)
}

func TestStore_Reopen(t *testing.T) {
	store, path := openStore(t)
	hash, _, err := store.Record([]byte(`persisted`), "keep")
	require.NoError(t, err)

	reopened, err := history.Open(&config.HistoryConfig{Path: path})
	require.NoError(t, err)

	versions, err := reopened.Log(0)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, hash, versions[0].Hash)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := history.Open(&config.HistoryConfig{})
	assert.Error(t, err)
}
