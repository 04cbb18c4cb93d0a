package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageService_SaveSniffsContentType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dto, err := env.images.Save(ctx, "shot", "application/octet-stream", pngBytes)
	require.NoError(t, err)
	assert.Equal(t, "image/png", dto.ContentType)
	assert.Equal(t, "local:shot", dto.Ref)
	assert.Equal(t, int64(len(pngBytes)), dto.Size)

	generated, err := env.images.Save(ctx, "", "image/png", pngBytes)
	require.NoError(t, err)
	assert.Regexp(t, `^image-1709294400000-[0-9a-f]{8}$`, generated.ID)
}

func TestImageService_GeneratedIDsDoNotCollide(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.images.Save(ctx, "", "image/png", pngBytes)
	require.NoError(t, err)
	larger := append(append([]byte{}, pngBytes...), 0)
	second, err := env.images.Save(ctx, "", "image/png", larger)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	img, err := env.images.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, img.Data)
}

func TestImageService_SaveRejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.images.Save(ctx, "note", "text/plain", []byte("just some text"))
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.images.Save(ctx, "../escape", "image/png", pngBytes)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.images.Save(ctx, "empty", "image/png", nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	env.images.maxBytes = 10
	_, err = env.images.Save(ctx, "big", "image/png", pngBytes)
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = env.images.SaveDataURL(ctx, "bad", "data:image/png,notbase64")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestImageService_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.images.SaveDataURL(ctx, "a", pngDataURL())
	require.NoError(t, err)
	_, err = env.images.SaveDataURL(ctx, "b", pngDataURL())
	require.NoError(t, err)

	list, err := env.images.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	pending, err := env.images.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	require.NoError(t, env.images.MarkUploaded(ctx, "a", "https://cdn.test/a.png"))
	require.ErrorIs(t, env.images.MarkUploaded(ctx, "zzz", "x"), ErrNotFound)

	img, err := env.images.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, img.IsUploaded())

	existing, err := env.images.ExistingIDs(ctx, []string{"a", "missing"})
	require.NoError(t, err)
	assert.True(t, existing["a"])
	assert.False(t, existing["missing"])

	// uploaded at fixedNow; pruning anything older than an hour as seen a day later
	env.images.now = func() time.Time { return fixedNow.Add(24 * time.Hour) }
	removed, err := env.images.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = env.images.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, env.images.Delete(ctx, "b"))
	require.ErrorIs(t, env.images.Delete(ctx, "b"), ErrNotFound)
}
