package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/imgvault/imgvault/internal/model"
)

// Common errors for image repository operations.
var (
	ErrImageNotFound = errors.New("image not found")
	ErrImageExists   = errors.New("image already associated with user")
)

// CreateUserImage inserts a new ownership record. The unique constraint on
// (user_id, image_hash) is the only guard against duplicate records from
// concurrent uploads; a violation surfaces as ErrImageExists.
func (r *Repository) CreateUserImage(ctx context.Context, image *model.UserImage) error {
	query := `
		INSERT INTO user_images (id, user_id, image_hash, delete_hash, image_url, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		image.ID,
		image.UserID,
		image.ImageHash,
		image.DeleteHash,
		image.ImageURL,
		image.UploadedAt,
	)

	if err != nil {
		if isUniqueViolation(err, "") {
			return ErrImageExists
		}
		return fmt.Errorf("failed to create user image: %w", err)
	}

	return nil
}

// GetUserImageByUsernameAndHash retrieves the ownership record for a given
// owner and provider image hash. Absence of a record and ownership by a
// different user are indistinguishable here, both yield ErrImageNotFound.
func (r *Repository) GetUserImageByUsernameAndHash(ctx context.Context, username, imageHash string) (*model.UserImage, error) {
	query := `
		SELECT i.id, i.user_id, i.image_hash, i.delete_hash, i.image_url, i.uploaded_at
		FROM user_images i
		JOIN users u ON u.id = i.user_id
		WHERE u.username = $1 AND i.image_hash = $2
	`

	image, err := scanUserImage(r.pool.QueryRow(ctx, query, username, imageHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get user image: %w", err)
	}

	return image, nil
}

// ListUserImagesByUsername retrieves all ownership records for a user,
// ordered by upload time ascending.
func (r *Repository) ListUserImagesByUsername(ctx context.Context, username string) ([]*model.UserImage, error) {
	query := `
		SELECT i.id, i.user_id, i.image_hash, i.delete_hash, i.image_url, i.uploaded_at
		FROM user_images i
		JOIN users u ON u.id = i.user_id
		WHERE u.username = $1
		ORDER BY i.uploaded_at ASC, i.id ASC
	`

	rows, err := r.pool.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list user images: %w", err)
	}
	defer rows.Close()

	var images []*model.UserImage
	for rows.Next() {
		image, err := scanUserImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user image: %w", err)
		}
		images = append(images, image)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user images: %w", err)
	}

	return images, nil
}

// DeleteUserImage removes an ownership record by its local ID.
// Deleting a missing record is a no-op, not an error.
func (r *Repository) DeleteUserImage(ctx context.Context, id string) error {
	query := `DELETE FROM user_images WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete user image: %w", err)
	}

	return nil
}

// scanUserImage scans a single row into a UserImage model.
func scanUserImage(row pgx.Row) (*model.UserImage, error) {
	var image model.UserImage
	err := row.Scan(
		&image.ID,
		&image.UserID,
		&image.ImageHash,
		&image.DeleteHash,
		&image.ImageURL,
		&image.UploadedAt,
	)
	return &image, err
}
