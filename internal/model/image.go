package model

import "time"

// UserImage is an ownership record tying a local user to an image hosted
// on the provider. DeleteHash is the provider-issued secret required to
// delete the remote asset; it is persisted but never serialized into API
// responses.
type UserImage struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ImageHash  string    `json:"image_hash"`
	DeleteHash string    `json:"-"`
	ImageURL   string    `json:"image_url"`
	UploadedAt time.Time `json:"uploaded_at"`
}
