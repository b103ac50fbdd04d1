package ports

import (
	"context"

	"github.com/aretw0/retrofx/pkg/domain"
)

// UploadGateway sends a raw image to the upload service.
type UploadGateway interface {
	// Upload returns the ImageRef under which the service stored the image.
	// Transport and server-reported failures are returned as domain.ErrUpload.
	Upload(ctx context.Context, filename string, data []byte) (domain.ImageRef, error)
}

// ProcessingGateway asks the processing service to apply an effect.
type ProcessingGateway interface {
	// Process returns where the processed image can be fetched.
	// Transport and server-reported failures are returned as domain.ErrProcessing.
	Process(ctx context.Context, ref domain.ImageRef, inst domain.EffectInstance) (domain.RenderableResult, error)
}

// ImageFetcher downloads image bytes for the preview.
type ImageFetcher interface {
	FetchSource(ctx context.Context, ref domain.ImageRef) ([]byte, error)
	// FetchResult must defeat intermediary caches so repeated results are never stale bytes.
	FetchResult(ctx context.Context, result domain.RenderableResult) ([]byte, error)
}
