package domain

import "github.com/google/uuid"

// ImageHandle is an opaque reference to a generated image. Either URL or
// Data (base64) is set, depending on what the backend returned.
type ImageHandle struct {
	ID   uuid.UUID
	URL  string
	Data string
}

func NewImageHandle(url, data string) *ImageHandle {
	return &ImageHandle{ID: uuid.New(), URL: url, Data: data}
}
