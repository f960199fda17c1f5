// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/imgvault/imgvault/internal/cleanup"
	"github.com/imgvault/imgvault/internal/imgur"
	"github.com/imgvault/imgvault/internal/metrics"
	"github.com/imgvault/imgvault/internal/model"
	"github.com/imgvault/imgvault/internal/repository"
)

// Image service errors.
var (
	ErrEmptyImage      = errors.New("image data is empty")
	ErrImageTooLarge   = errors.New("image exceeds maximum upload size")
	ErrUnsupportedType = errors.New("unsupported image content type")
	ErrImageNotFound   = errors.New("image not found")
	ErrImageExists     = errors.New("image already associated with user")
)

// Provider is the external hosting API surface the orchestrator needs.
type Provider interface {
	Upload(ctx context.Context, input imgur.UploadInput) (*imgur.UploadResult, error)
	GetImage(ctx context.Context, imageHash string) (*imgur.ImageInfo, error)
	Delete(ctx context.Context, deleteHash string) error
}

// ImageStore is the persistence surface the orchestrator needs.
type ImageStore interface {
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	CreateUserImage(ctx context.Context, image *model.UserImage) error
	GetUserImageByUsernameAndHash(ctx context.Context, username, imageHash string) (*model.UserImage, error)
	ListUserImagesByUsername(ctx context.Context, username string) ([]*model.UserImage, error)
	DeleteUserImage(ctx context.Context, id string) error
}

// OrphanQueue receives remote images whose local record failed to persist.
type OrphanQueue interface {
	Enqueue(ctx context.Context, payload cleanup.OrphanPayload)
}

// ImageService sequences provider calls with store mutations. It owns the
// consistency contract between remote and local state: no ownership record
// exists without a confirmed provider upload, and no record is removed
// without a confirmed provider delete.
type ImageService struct {
	provider      Provider
	store         ImageStore
	orphans       OrphanQueue
	logger        *slog.Logger
	metrics       metrics.Recorder
	maxUploadSize int64
	allowedTypes  map[string]struct{}
}

// NewImageService creates a new ImageService. orphans may be nil, in which
// case persist failures after a successful upload are only logged.
func NewImageService(provider Provider, store ImageStore, orphans OrphanQueue, maxUploadSize int64, allowedTypes []string, logger *slog.Logger, recorder metrics.Recorder) *ImageService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	types := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		types[t] = struct{}{}
	}
	return &ImageService{
		provider:      provider,
		store:         store,
		orphans:       orphans,
		logger:        logger.With("component", "service.image"),
		metrics:       recorder,
		maxUploadSize: maxUploadSize,
		allowedTypes:  types,
	}
}

// UploadInput defines input for uploading an image.
type UploadInput struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Upload validates the input, uploads the bytes to the provider, and only
// after a confirmed provider success persists the ownership record. Provider
// failure aborts before any persistence attempt. A persistence failure after
// a successful upload leaves an orphaned remote asset; its delete hash is
// handed to the cleanup queue for a best-effort compensating delete.
func (s *ImageService) Upload(ctx context.Context, username string, input UploadInput) (*model.UserImage, error) {
	if err := s.validateUpload(input); err != nil {
		s.metrics.IncUploadRejected()
		return nil, err
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	start := time.Now()
	result, err := s.provider.Upload(ctx, imgur.UploadInput{
		Data:        input.Data,
		Filename:    input.Filename,
		ContentType: input.ContentType,
	})
	s.metrics.ObserveProviderDuration("upload", time.Since(start))
	if err != nil {
		s.metrics.IncProviderError("upload")
		return nil, err
	}

	image := &model.UserImage{
		ID:         newID(),
		UserID:     user.ID,
		ImageHash:  result.ImageHash,
		DeleteHash: result.DeleteHash,
		ImageURL:   result.Link,
		UploadedAt: time.Now().UTC(),
	}

	if err := s.store.CreateUserImage(ctx, image); err != nil {
		// Remote upload succeeded but we have no local record: the asset
		// is orphaned. Queue its delete hash for remote cleanup and log
		// enough to recover manually if the queue is unavailable.
		s.logger.Error("ownership record persist failed after provider upload",
			slog.String("username", username),
			slog.String("image_hash", image.ImageHash),
			slog.String("delete_hash", image.DeleteHash),
			slog.String("error", err.Error()),
		)
		if s.orphans != nil {
			s.orphans.Enqueue(ctx, cleanup.OrphanPayload{
				DeleteHash: image.DeleteHash,
				ImageHash:  image.ImageHash,
				Username:   username,
			})
		}
		if errors.Is(err, repository.ErrImageExists) {
			return nil, ErrImageExists
		}
		return nil, fmt.Errorf("persist ownership record: %w", err)
	}

	s.metrics.IncImageUploaded()
	s.logger.Info("image uploaded",
		slog.String("username", username),
		slog.String("image_hash", image.ImageHash),
		slog.Int("size_bytes", len(input.Data)),
	)

	return image, nil
}

// Fetch returns the user's ownership record together with live provider
// metadata. Records the user does not own look identical to records that
// never existed, preventing enumeration of other users' images.
func (s *ImageService) Fetch(ctx context.Context, username, imageHash string) (*model.UserImage, *imgur.ImageInfo, error) {
	image, err := s.store.GetUserImageByUsernameAndHash(ctx, username, imageHash)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return nil, nil, ErrImageNotFound
		}
		return nil, nil, err
	}

	start := time.Now()
	info, err := s.provider.GetImage(ctx, image.ImageHash)
	s.metrics.ObserveProviderDuration("get", time.Since(start))
	if err != nil {
		s.metrics.IncProviderError("get")
		return nil, nil, err
	}

	return image, info, nil
}

// Delete reverses an upload: provider delete first using the stored delete
// hash, then removal of the local record only on confirmed provider success.
// A provider failure retains the record, so the operation is retryable.
func (s *ImageService) Delete(ctx context.Context, username, imageHash string) error {
	image, err := s.store.GetUserImageByUsernameAndHash(ctx, username, imageHash)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return ErrImageNotFound
		}
		return err
	}

	start := time.Now()
	err = s.provider.Delete(ctx, image.DeleteHash)
	s.metrics.ObserveProviderDuration("delete", time.Since(start))
	if err != nil {
		s.metrics.IncProviderError("delete")
		return err
	}

	if err := s.store.DeleteUserImage(ctx, image.ID); err != nil {
		return fmt.Errorf("remove ownership record: %w", err)
	}

	s.metrics.IncImageDeleted()
	s.logger.Info("image deleted",
		slog.String("username", username),
		slog.String("image_hash", imageHash),
	)

	return nil
}

// List returns all ownership records for the user, oldest first.
func (s *ImageService) List(ctx context.Context, username string) ([]*model.UserImage, error) {
	images, err := s.store.ListUserImagesByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list user images: %w", err)
	}
	return images, nil
}

// validateUpload rejects bad input before any external call is made.
func (s *ImageService) validateUpload(input UploadInput) error {
	if len(input.Data) == 0 {
		return ErrEmptyImage
	}
	if int64(len(input.Data)) > s.maxUploadSize {
		return ErrImageTooLarge
	}
	if _, ok := s.allowedTypes[input.ContentType]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// newID generates a lexicographically sortable unique ID.
func newID() string {
	return ulid.Make().String()
}
