package service

import (
	"context"

	apperrors "go-image-transcriber/internal/errors"
	"go-image-transcriber/internal/repository"

	"github.com/samber/lo"
)

// SharedCollection is the public view of a shared collection: the collection
// plus the transcriptions it links.
type SharedCollection struct {
	Collection     *repository.Collection      `json:"collection"`
	Transcriptions []*repository.Transcription `json:"transcriptions"`
}

// CollectionService enforces ownership over the collection repository.
type CollectionService struct {
	collections    repository.CollectionRepository
	transcriptions repository.TranscriptionRepository
}

// NewCollectionService creates the collection service.
func NewCollectionService(collections repository.CollectionRepository, transcriptions repository.TranscriptionRepository) *CollectionService {
	return &CollectionService{collections: collections, transcriptions: transcriptions}
}

// Create stores a new collection owned by userID.
func (s *CollectionService) Create(ctx context.Context, userID, name, description string, isPublic bool) (*repository.Collection, error) {
	c := &repository.Collection{
		UserID:      userID,
		Name:        name,
		Description: description,
		IsPublic:    isPublic,
	}
	if err := s.collections.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the collection if it belongs to userID.
func (s *CollectionService) Get(ctx context.Context, userID, id string) (*repository.Collection, error) {
	c, err := s.collections.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		// Not revealing existence of other users' collections.
		return nil, apperrors.NewNotFoundError("collection not found", nil)
	}
	return c, nil
}

// List returns all collections owned by userID, newest first.
func (s *CollectionService) List(ctx context.Context, userID string) ([]*repository.Collection, error) {
	return s.collections.ListByUser(ctx, userID)
}

// Update changes name, description and visibility of an owned collection.
func (s *CollectionService) Update(ctx context.Context, userID, id, name, description string, isPublic bool) (*repository.Collection, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		c.Name = name
	}
	c.Description = description
	c.IsPublic = isPublic
	if err := s.collections.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes an owned collection and its items.
func (s *CollectionService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.collections.Delete(ctx, id)
}

// AddItem links an owned transcription into an owned collection.
func (s *CollectionService) AddItem(ctx context.Context, userID, collectionID, transcriptionID string) (*repository.CollectionItem, error) {
	if _, err := s.Get(ctx, userID, collectionID); err != nil {
		return nil, err
	}
	t, err := s.transcriptions.Get(ctx, transcriptionID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, apperrors.NewNotFoundError("transcription not found", nil)
	}

	items, err := s.collections.ListItems(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if lo.SomeBy(items, func(i *repository.CollectionItem) bool { return i.TranscriptionID == transcriptionID }) {
		return nil, apperrors.NewValidationError("transcription already in collection", nil)
	}

	item := &repository.CollectionItem{CollectionID: collectionID, TranscriptionID: transcriptionID}
	if err := s.collections.AddItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// RemoveItem unlinks an item from an owned collection.
func (s *CollectionService) RemoveItem(ctx context.Context, userID, collectionID, itemID string) error {
	if _, err := s.Get(ctx, userID, collectionID); err != nil {
		return err
	}
	return s.collections.RemoveItem(ctx, collectionID, itemID)
}

// ListItems returns the items of an owned collection in insertion order.
func (s *CollectionService) ListItems(ctx context.Context, userID, collectionID string) ([]*repository.CollectionItem, error) {
	if _, err := s.Get(ctx, userID, collectionID); err != nil {
		return nil, err
	}
	return s.collections.ListItems(ctx, collectionID)
}

// GetShared resolves a public collection by its share token, with the linked
// transcriptions resolved. No authentication involved.
func (s *CollectionService) GetShared(ctx context.Context, token string) (*SharedCollection, error) {
	c, err := s.collections.GetByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	items, err := s.collections.ListItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	transcriptions := make([]*repository.Transcription, 0, len(items))
	for _, item := range items {
		t, err := s.transcriptions.Get(ctx, item.TranscriptionID)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				continue // transcription deleted after being shared
			}
			return nil, err
		}
		transcriptions = append(transcriptions, t)
	}
	return &SharedCollection{Collection: c, Transcriptions: transcriptions}, nil
}
