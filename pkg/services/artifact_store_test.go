package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"gtm-agent-api/pkg/logger"
	"gtm-agent-api/pkg/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArtifactService() (*ArtifactService, *MemoryArtifactStore) {
	store := NewMemoryArtifactStore()
	return NewArtifactService(store, nil, logger.NewNop()), store
}

func TestValidateFilename(t *testing.T) {
	valid := []string{"gtm-scorecard.json", "action-plan.md", "a_b.C-1", strings.Repeat("a", 100)}
	for _, name := range valid {
		assert.NoError(t, ValidateFilename(name), name)
	}

	invalid := []string{"", "../../etc/passwd", "a..b", "dir/file.md", "with space.md", "ünicode.md", strings.Repeat("a", 101)}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateFilename(name), ErrInvalidFilename, name)
	}
}

func TestArtifactService_WriteSizeLimit(t *testing.T) {
	svc, store := newTestArtifactService()
	ctx := context.Background()

	_, err := svc.Write(ctx, "t1", "exact.md", strings.Repeat("x", MaxArtifactBytes), models.ArtifactNarrative)
	assert.NoError(t, err)

	_, err = svc.Write(ctx, "t1", "over.md", strings.Repeat("x", MaxArtifactBytes+1), models.ArtifactNarrative)
	assert.ErrorIs(t, err, ErrTooLarge)

	list, err := store.List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "exact.md", list[0].Filename)
}

func TestArtifactService_RejectsBadInputWithoutWriting(t *testing.T) {
	svc, store := newTestArtifactService()
	ctx := context.Background()

	_, err := svc.Write(ctx, "t1", "../../etc/passwd", "x", models.ArtifactNarrative)
	assert.ErrorIs(t, err, ErrInvalidFilename)

	_, err = svc.Write(ctx, "t1", "notes.md", "x", models.ArtifactType("memo"))
	assert.ErrorIs(t, err, ErrInvalidType)

	list, _ := store.List(ctx, "t1")
	assert.Empty(t, list)
}

func TestArtifactService_WriteMetadata(t *testing.T) {
	svc, _ := newTestArtifactService()

	meta, err := svc.Write(context.Background(), "t1", "gtm-scorecard.json", "{}", models.ArtifactScorecard)
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactMetadata{
		Filename:       "gtm-scorecard.json",
		ArtifactType:   models.ArtifactScorecard,
		SizeBytes:      2,
		ContentPreview: "{}",
	}, meta)
}

func TestPreview(t *testing.T) {
	p := Preview(strings.Repeat("a", 500))
	assert.Equal(t, 200, utf8.RuneCountInString(p))
	assert.True(t, strings.HasSuffix(p, "..."))

	exact := strings.Repeat("é", 200)
	assert.Equal(t, exact, Preview(exact))
}

func TestArtifactService_ReadAndOverwrite(t *testing.T) {
	svc, _ := newTestArtifactService()
	ctx := context.Background()

	_, err := svc.Write(ctx, "t1", "gtm-narrative.md", "first", models.ArtifactNarrative)
	require.NoError(t, err)
	_, err = svc.Write(ctx, "t1", "gtm-narrative.md", "second", models.ArtifactNarrative)
	require.NoError(t, err)

	content, mediaType, err := svc.Read(ctx, "t1", "gtm-narrative.md")
	require.NoError(t, err)
	assert.Equal(t, "second", content)
	assert.Equal(t, "text/markdown", mediaType)

	list, err := svc.List(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestArtifactService_ThreadsAreIsolated(t *testing.T) {
	svc, _ := newTestArtifactService()
	ctx := context.Background()

	_, err := svc.Write(ctx, "t1", "gtm-scorecard.json", "{}", models.ArtifactScorecard)
	require.NoError(t, err)

	_, _, err = svc.Read(ctx, "t2", "gtm-scorecard.json")
	assert.ErrorIs(t, err, ErrArtifactNotFound)

	require.NoError(t, svc.Clear(ctx))
	_, _, err = svc.Read(ctx, "t1", "gtm-scorecard.json")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "application/json", MediaType("a.json"))
	assert.Equal(t, "text/markdown", MediaType("a.MD"))
	assert.Equal(t, "application/octet-stream", MediaType("a.txt"))
}

func TestRedisArtifactStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	store, err := NewRedisArtifactStore(ctx, mr.Addr(), "", 0, "gtmtest")
	require.NoError(t, err)
	defer store.Close()

	svc := NewArtifactService(store, nil, logger.NewNop())
	_, err = svc.Write(ctx, "t1", "gtm-scorecard.json", `{"level":3}`, models.ArtifactScorecard)
	require.NoError(t, err)
	_, err = svc.Write(ctx, "t1", "gtm-narrative.md", "# N", models.ArtifactNarrative)
	require.NoError(t, err)

	content, mediaType, err := svc.Read(ctx, "t1", "gtm-scorecard.json")
	require.NoError(t, err)
	assert.Equal(t, `{"level":3}`, content)
	assert.Equal(t, "application/json", mediaType)

	_, _, err = svc.Read(ctx, "t1", "missing.md")
	assert.ErrorIs(t, err, ErrArtifactNotFound)

	other, err := svc.List(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, store.Clear(ctx))
	list, err := svc.List(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, mr.Keys())
}

func TestArtifactStores_OverwriteKeepsFirstWriteOrder(t *testing.T) {
	ctx := context.Background()
	redisStore, err := NewRedisArtifactStore(ctx, miniredis.RunT(t).Addr(), "", 0, "gtmtest")
	require.NoError(t, err)
	defer redisStore.Close()

	stores := map[string]ArtifactStore{
		"memory": NewMemoryArtifactStore(),
		"redis":  redisStore,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			svc := NewArtifactService(store, nil, logger.NewNop())
			for _, f := range []string{"a.md", "b.md", "c.md"} {
				_, err := svc.Write(ctx, "t1", f, "v1", models.ArtifactNarrative)
				require.NoError(t, err)
			}
			_, err := svc.Write(ctx, "t1", "a.md", "v2", models.ArtifactNarrative)
			require.NoError(t, err)

			list, err := store.List(ctx, "t1")
			require.NoError(t, err)
			names := make([]string, len(list))
			for i, a := range list {
				names[i] = a.Filename
			}
			assert.Equal(t, []string{"a.md", "b.md", "c.md"}, names)
			assert.Equal(t, "v2", list[0].Content)
		})
	}
}
