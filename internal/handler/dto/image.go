// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/imgvault/imgvault/internal/imgur"
	"github.com/imgvault/imgvault/internal/model"
)

// ImageMetadata is live provider metadata merged into an image response.
type ImageMetadata struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
}

// ImageResponse represents an owned image in API responses.
// The delete hash is deliberately absent from this shape.
type ImageResponse struct {
	ImageHash  string         `json:"image_hash"`
	ImageURL   string         `json:"image_url"`
	UploadedAt time.Time      `json:"uploaded_at"`
	Metadata   *ImageMetadata `json:"metadata,omitempty"`
}

// ImageListResponse represents the user's owned images.
type ImageListResponse struct {
	Data  []ImageResponse `json:"data"`
	Count int             `json:"count"`
}

// DeleteImageResponse reports the outcome of a delete.
type DeleteImageResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToImageResponse converts a UserImage model to ImageResponse DTO.
func ToImageResponse(image *model.UserImage, info *imgur.ImageInfo) *ImageResponse {
	resp := &ImageResponse{
		ImageHash:  image.ImageHash,
		ImageURL:   image.ImageURL,
		UploadedAt: image.UploadedAt,
	}
	if info != nil {
		resp.Metadata = &ImageMetadata{
			Type:   info.Type,
			Width:  info.Width,
			Height: info.Height,
			Size:   info.Size,
		}
	}
	return resp
}

// ToImageListResponse converts a slice of UserImage models to a list response.
func ToImageListResponse(images []*model.UserImage) *ImageListResponse {
	responses := make([]ImageResponse, len(images))
	for i, image := range images {
		responses[i] = *ToImageResponse(image, nil)
	}
	return &ImageListResponse{
		Data:  responses,
		Count: len(responses),
	}
}
