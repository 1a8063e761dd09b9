// Package storage keeps listing images outside the database. A store hands
// back a reference (a URL path) that is saved in the listing's image_url.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a reference does not point at a stored image.
var ErrNotFound = errors.New("image not found")

// ImageStore saves and removes image objects.
type ImageStore interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (ref string, err error)
	Delete(ctx context.Context, ref string) error
}
