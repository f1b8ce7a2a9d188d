package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	apperrors "go-image-transcriber/internal/errors"
	"go-image-transcriber/internal/logger"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Key layout. Primary records are keyed by id; secondary index entries map
// back to the primary key so listing never needs a full scan.
//
//	transcription:<id>                          -> json record
//	user_transcriptions:<userID>:<nano>:<id>    -> id
//	collection:<id>                             -> json record
//	user_collections:<userID>:<id>              -> id
//	share_token:<token>                         -> collection id
//	collection_items:<collectionID>:<itemID>    -> json item
const (
	prefixTranscription     = "transcription:"
	prefixUserTranscription = "user_transcriptions:"
	prefixCollection        = "collection:"
	prefixUserCollection    = "user_collections:"
	prefixShareToken        = "share_token:"
	prefixCollectionItem    = "collection_items:"
)

// OpenDB opens (or creates) the badger database at path with logging routed
// through the application logger.
func OpenDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to open record store", err)
	}
	logger.WithField("path", path).Debug("Record store opened")
	return db, nil
}

// BadgerTranscriptionRepository stores transcriptions in badger.
type BadgerTranscriptionRepository struct {
	db *badger.DB
}

// NewBadgerTranscriptionRepository creates a transcription repository backed
// by the given database.
func NewBadgerTranscriptionRepository(db *badger.DB) *BadgerTranscriptionRepository {
	return &BadgerTranscriptionRepository{db: db}
}

func (r *BadgerTranscriptionRepository) Create(ctx context.Context, t *Transcription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.UserID == "" {
		return apperrors.NewValidationError("transcription requires a user id", nil)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	value, err := json.Marshal(t)
	if err != nil {
		return apperrors.NewInternalError("failed to encode transcription", err)
	}

	indexKey := fmt.Sprintf("%s%s:%d:%s", prefixUserTranscription, t.UserID, t.CreatedAt.UnixNano(), t.ID)
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixTranscription+t.ID), value); err != nil {
			return err
		}
		return txn.Set([]byte(indexKey), []byte(t.ID))
	})
}

func (r *BadgerTranscriptionRepository) Get(ctx context.Context, id string) (*Transcription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var t Transcription
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixTranscription + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, apperrors.NewNotFoundError("transcription not found", nil)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read transcription", err)
	}
	return &t, nil
}

func (r *BadgerTranscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*Transcription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := r.collectIndexedIDs(prefixUserTranscription + userID + ":")
	if err != nil {
		return nil, err
	}

	results := make([]*Transcription, 0, len(ids))
	for _, id := range ids {
		t, err := r.Get(ctx, id)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				continue // index entry outlived the record
			}
			return nil, err
		}
		results = append(results, t)
	}

	// Newest first. The index iterates in key (time) order.
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

func (r *BadgerTranscriptionRepository) Update(ctx context.Context, t *Transcription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	existing, err := r.Get(ctx, t.ID)
	if err != nil {
		return err
	}
	t.UserID = existing.UserID
	t.CreatedAt = existing.CreatedAt

	value, err := json.Marshal(t)
	if err != nil {
		return apperrors.NewInternalError("failed to encode transcription", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixTranscription+t.ID), value)
	})
}

func (r *BadgerTranscriptionRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	existing, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	indexKey := fmt.Sprintf("%s%s:%d:%s", prefixUserTranscription, existing.UserID, existing.CreatedAt.UnixNano(), id)
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(prefixTranscription + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(indexKey))
	})
}

func (r *BadgerTranscriptionRepository) collectIndexedIDs(prefix string) ([]string, error) {
	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan transcription index", err)
	}
	return ids, nil
}

// BadgerCollectionRepository stores collections and their items in badger.
type BadgerCollectionRepository struct {
	db *badger.DB
}

// NewBadgerCollectionRepository creates a collection repository backed by the
// given database.
func NewBadgerCollectionRepository(db *badger.DB) *BadgerCollectionRepository {
	return &BadgerCollectionRepository{db: db}
}

func (r *BadgerCollectionRepository) Create(ctx context.Context, c *Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.UserID == "" {
		return apperrors.NewValidationError("collection requires a user id", nil)
	}
	if c.Name == "" {
		return apperrors.NewValidationError("collection requires a name", nil)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.IsPublic && c.ShareToken == "" {
		c.ShareToken = uuid.NewString()
	}

	value, err := json.Marshal(c)
	if err != nil {
		return apperrors.NewInternalError("failed to encode collection", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixCollection+c.ID), value); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixUserCollection+c.UserID+":"+c.ID), []byte(c.ID)); err != nil {
			return err
		}
		if c.ShareToken != "" {
			return txn.Set([]byte(prefixShareToken+c.ShareToken), []byte(c.ID))
		}
		return nil
	})
}

func (r *BadgerCollectionRepository) Get(ctx context.Context, id string) (*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var c Collection
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixCollection + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &c)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, apperrors.NewNotFoundError("collection not found", nil)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read collection", err)
	}
	return &c, nil
}

func (r *BadgerCollectionRepository) GetByShareToken(ctx context.Context, token string) (*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var id string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixShareToken + token))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, apperrors.NewNotFoundError("shared collection not found", nil)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to resolve share token", err)
	}

	c, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsPublic {
		// Token survived the collection going private.
		return nil, apperrors.NewNotFoundError("shared collection not found", nil)
	}
	return c, nil
}

func (r *BadgerCollectionRepository) ListByUser(ctx context.Context, userID string) ([]*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := prefixUserCollection + userID + ":"
	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan collection index", err)
	}

	results := make([]*Collection, 0, len(ids))
	for _, id := range ids {
		c, err := r.Get(ctx, id)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				continue
			}
			return nil, err
		}
		results = append(results, c)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

func (r *BadgerCollectionRepository) Update(ctx context.Context, c *Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	existing, err := r.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	c.UserID = existing.UserID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	if c.IsPublic && c.ShareToken == "" {
		c.ShareToken = existing.ShareToken
		if c.ShareToken == "" {
			c.ShareToken = uuid.NewString()
		}
	}

	value, err := json.Marshal(c)
	if err != nil {
		return apperrors.NewInternalError("failed to encode collection", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixCollection+c.ID), value); err != nil {
			return err
		}
		if c.ShareToken != "" && c.ShareToken != existing.ShareToken {
			if existing.ShareToken != "" {
				if err := txn.Delete([]byte(prefixShareToken + existing.ShareToken)); err != nil {
					return err
				}
			}
			return txn.Set([]byte(prefixShareToken+c.ShareToken), []byte(c.ID))
		}
		if c.ShareToken != "" {
			return txn.Set([]byte(prefixShareToken+c.ShareToken), []byte(c.ID))
		}
		return nil
	})
}

func (r *BadgerCollectionRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	existing, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	items, err := r.ListItems(ctx, id)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(prefixCollection + id)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(prefixUserCollection + existing.UserID + ":" + id)); err != nil {
			return err
		}
		if existing.ShareToken != "" {
			if err := txn.Delete([]byte(prefixShareToken + existing.ShareToken)); err != nil {
				return err
			}
		}
		for _, item := range items {
			if err := txn.Delete([]byte(prefixCollectionItem + id + ":" + item.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *BadgerCollectionRepository) AddItem(ctx context.Context, item *CollectionItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.Get(ctx, item.CollectionID); err != nil {
		return err
	}
	if item.TranscriptionID == "" {
		return apperrors.NewValidationError("collection item requires a transcription id", nil)
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}

	value, err := json.Marshal(item)
	if err != nil {
		return apperrors.NewInternalError("failed to encode collection item", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixCollectionItem+item.CollectionID+":"+item.ID), value)
	})
}

func (r *BadgerCollectionRepository) RemoveItem(ctx context.Context, collectionID, itemID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := []byte(prefixCollectionItem + collectionID + ":" + itemID)
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err == badger.ErrKeyNotFound {
		return apperrors.NewNotFoundError("collection item not found", nil)
	}
	if err != nil {
		return apperrors.NewInternalError("failed to remove collection item", err)
	}
	return nil
}

func (r *BadgerCollectionRepository) ListItems(ctx context.Context, collectionID string) ([]*CollectionItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := prefixCollectionItem + collectionID + ":"
	var items []*CollectionItem
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			var item CollectionItem
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			})
			if err != nil {
				return err
			}
			items = append(items, &item)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list collection items", err)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].AddedAt.Before(items[j].AddedAt)
	})
	return items, nil
}
