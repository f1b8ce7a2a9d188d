package repository

import (
	"context"
	"time"
)

// Transcription statuses.
const (
	StatusCompleted  = "completed"
	StatusProcessing = "processing"
	StatusError      = "error"
)

// Transcription is the persisted outcome of one analysis. Records are
// created once per completed or partially-completed analysis and only
// modified through Update.
type Transcription struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ImageURL   string    `json:"image_url,omitempty"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Collection groups transcriptions for sharing. A public collection is
// addressable by its share token without authentication.
type Collection struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	ShareToken  string    `json:"share_token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CollectionItem links a transcription into a collection.
type CollectionItem struct {
	ID              string    `json:"id"`
	CollectionID    string    `json:"collection_id"`
	TranscriptionID string    `json:"transcription_id"`
	AddedAt         time.Time `json:"added_at"`
}

// TranscriptionRepository persists Transcription records. Create assigns the
// id and creation timestamp.
type TranscriptionRepository interface {
	Create(ctx context.Context, t *Transcription) error
	Get(ctx context.Context, id string) (*Transcription, error)
	ListByUser(ctx context.Context, userID string) ([]*Transcription, error)
	Update(ctx context.Context, t *Transcription) error
	Delete(ctx context.Context, id string) error
}

// CollectionRepository persists collections and their items.
type CollectionRepository interface {
	Create(ctx context.Context, c *Collection) error
	Get(ctx context.Context, id string) (*Collection, error)
	GetByShareToken(ctx context.Context, token string) (*Collection, error)
	ListByUser(ctx context.Context, userID string) ([]*Collection, error)
	Update(ctx context.Context, c *Collection) error
	Delete(ctx context.Context, id string) error

	AddItem(ctx context.Context, item *CollectionItem) error
	RemoveItem(ctx context.Context, collectionID, itemID string) error
	ListItems(ctx context.Context, collectionID string) ([]*CollectionItem, error)
}
