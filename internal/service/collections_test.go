package service

import (
	"context"
	"testing"

	apperrors "go-image-transcriber/internal/errors"
	"go-image-transcriber/internal/repository"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCollectionService(t *testing.T) (*CollectionService, repository.TranscriptionRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	transcriptions := repository.NewBadgerTranscriptionRepository(db)
	return NewCollectionService(repository.NewBadgerCollectionRepository(db), transcriptions), transcriptions
}

func TestCollectionService_OwnershipEnforced(t *testing.T) {
	svc, _ := newCollectionService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "alice", "faturas", "notas de março", false)
	require.NoError(t, err)

	_, err = svc.Get(ctx, "bob", c.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	err = svc.Delete(ctx, "bob", c.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	got, err := svc.Get(ctx, "alice", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "faturas", got.Name)
}

func TestCollectionService_AddItemChecksTranscriptionOwner(t *testing.T) {
	svc, transcriptions := newCollectionService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "alice", "docs", "", false)
	require.NoError(t, err)

	other := &repository.Transcription{UserID: "bob", Text: "texto alheio", Status: repository.StatusCompleted}
	require.NoError(t, transcriptions.Create(ctx, other))

	_, err = svc.AddItem(ctx, "alice", c.ID, other.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestCollectionService_AddItemRejectsDuplicates(t *testing.T) {
	svc, transcriptions := newCollectionService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "alice", "docs", "", false)
	require.NoError(t, err)

	mine := &repository.Transcription{UserID: "alice", Text: "meu texto", Status: repository.StatusCompleted}
	require.NoError(t, transcriptions.Create(ctx, mine))

	_, err = svc.AddItem(ctx, "alice", c.ID, mine.ID)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, "alice", c.ID, mine.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestCollectionService_GetShared(t *testing.T) {
	svc, transcriptions := newCollectionService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "alice", "público", "compartilhado", true)
	require.NoError(t, err)
	require.NotEmpty(t, c.ShareToken)

	rec := &repository.Transcription{UserID: "alice", Text: "conteúdo compartilhado", Status: repository.StatusCompleted}
	require.NoError(t, transcriptions.Create(ctx, rec))
	_, err = svc.AddItem(ctx, "alice", c.ID, rec.ID)
	require.NoError(t, err)

	shared, err := svc.GetShared(ctx, c.ShareToken)
	require.NoError(t, err)
	assert.Equal(t, c.ID, shared.Collection.ID)
	require.Len(t, shared.Transcriptions, 1)
	assert.Equal(t, "conteúdo compartilhado", shared.Transcriptions[0].Text)

	_, err = svc.GetShared(ctx, "invalid-token")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestCollectionService_UpdateTogglesVisibility(t *testing.T) {
	svc, _ := newCollectionService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "alice", "rascunho", "", false)
	require.NoError(t, err)
	assert.Empty(t, c.ShareToken)

	updated, err := svc.Update(ctx, "alice", c.ID, "publicado", "agora visível", true)
	require.NoError(t, err)
	assert.True(t, updated.IsPublic)
	assert.NotEmpty(t, updated.ShareToken)
	assert.Equal(t, "publicado", updated.Name)

	shared, err := svc.GetShared(ctx, updated.ShareToken)
	require.NoError(t, err)
	assert.Equal(t, c.ID, shared.Collection.ID)
}
