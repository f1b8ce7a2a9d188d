package storage

import (
	"context"
	"fmt"
	"time"

	apperrors "go-image-transcriber/internal/errors"
	"go-image-transcriber/internal/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BlobStore keeps uploaded originals so transcriptions can link back to the
// source image.
type BlobStore interface {
	UploadImage(ctx context.Context, data []byte, extension string) (string, error)
}

type azureStore struct {
	client      *azblob.Client
	accountName string
	container   string
}

// NewAzureStore creates a blob store over an Azure storage account.
func NewAzureStore(accountName, accountKey, container string) (BlobStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, apperrors.NewInternalError("invalid blob storage credentials", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create blob storage client", err)
	}

	return &azureStore{client: client, accountName: accountName, container: container}, nil
}

// UploadImage stores the image under a date-partitioned random name and
// returns the blob URL.
func (s *azureStore) UploadImage(ctx context.Context, data []byte, extension string) (string, error) {
	if len(data) == 0 {
		return "", apperrors.NewValidationError("cannot upload an empty image", nil)
	}
	if extension == "" {
		extension = "png"
	}

	blobName := fmt.Sprintf("%s/%s.%s", time.Now().UTC().Format("2006/01/02"), uuid.NewString(), extension)
	if _, err := s.client.UploadBuffer(ctx, s.container, blobName, data, nil); err != nil {
		return "", apperrors.NewUpstreamError("blob upload failed", err)
	}

	blobURL := fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", s.accountName, s.container, blobName)
	logger.WithFields(logrus.Fields{
		"blob":  blobName,
		"bytes": len(data),
	}).Debug("Image uploaded to blob storage")
	return blobURL, nil
}
