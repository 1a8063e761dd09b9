package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/chuka-black-market/marketplace/models"
	"github.com/chuka-black-market/marketplace/repository"
	"github.com/chuka-black-market/marketplace/storage"
)

// ErrNotFound is returned for an unknown listing id.
var ErrNotFound = errors.New("listing not found")

// ValidationError reports a rejected listing field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Store is the persistence the service needs. Get, Update and Delete
// return repository.ErrNotFound for unknown ids.
type Store interface {
	List(ctx context.Context) ([]models.Listing, error)
	Get(ctx context.Context, id int64) (*models.Listing, error)
	Create(ctx context.Context, l *models.Listing) error
	Update(ctx context.Context, l *models.Listing) error
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// ImageUpload is an image file submitted with a listing.
type ImageUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// ListingInput holds the mutable listing fields as submitted by a client.
// Price stays a string so that a missing value can be told apart from zero.
type ListingInput struct {
	Title       string
	Description string
	Price       string
	Category    string
	Location    string
	PhoneNumber string
	Image       *ImageUpload
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

type ListingService struct {
	store  Store
	images storage.ImageStore
}

func NewListingService(store Store, images storage.ImageStore) *ListingService {
	return &ListingService{store: store, images: images}
}

func (s *ListingService) List(ctx context.Context) ([]models.Listing, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Listing{}
	}
	return list, nil
}

func (s *ListingService) Get(ctx context.Context, id int64) (*models.Listing, error) {
	l, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return l, err
}

// Create validates in, stores the image if one was sent and inserts the row.
// When the insert fails the stored image is removed again; that cleanup is
// best-effort and only logged when it fails.
func (s *ListingService) Create(ctx context.Context, in ListingInput) (*models.Listing, error) {
	l := &models.Listing{}
	if err := apply(l, in); err != nil {
		return nil, err
	}

	ref, err := s.storeImage(ctx, in.Image)
	if err != nil {
		return nil, err
	}
	l.ImageURL = ref

	if err := s.store.Create(ctx, l); err != nil {
		s.discardImage(ref, "create")
		return nil, translate(err)
	}
	return l, nil
}

// Update replaces every mutable field of listing id. The previous image is
// kept unless a new one is supplied.
func (s *ListingService) Update(ctx context.Context, id int64, in ListingInput) (*models.Listing, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	l := &models.Listing{ID: id, ImageURL: current.ImageURL}
	if err := apply(l, in); err != nil {
		return nil, err
	}

	ref, err := s.storeImage(ctx, in.Image)
	if err != nil {
		return nil, err
	}
	if ref != "" {
		l.ImageURL = ref
	}

	if err := s.store.Update(ctx, l); err != nil {
		s.discardImage(ref, "update")
		return nil, translate(err)
	}
	if ref != "" && current.ImageURL != "" {
		s.discardImage(current.ImageURL, "replaced")
	}
	return l, nil
}

func (s *ListingService) Delete(ctx context.Context, id int64) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return translate(err)
	}
	s.discardImage(current.ImageURL, "delete")
	return nil
}

func (s *ListingService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *ListingService) storeImage(ctx context.Context, img *ImageUpload) (string, error) {
	if img == nil {
		return "", nil
	}
	if !strings.HasPrefix(img.ContentType, "image/") {
		return "", invalid("image", "image must be an image file")
	}
	if s.images == nil {
		return "", errors.New("no image store configured")
	}

	ext := strings.ToLower(filepath.Ext(img.Filename))
	if !imageExtensions[ext] {
		ext = ""
	}
	ref, err := s.images.Save(ctx, uuid.NewString()+ext, img.ContentType, img.Body)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return ref, nil
}

// discardImage removes an image that no row references any more. It runs
// on a fresh context so a cancelled request still cleans up.
func (s *ListingService) discardImage(ref, reason string) {
	if ref == "" || s.images == nil {
		return
	}
	err := s.images.Delete(context.Background(), ref)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("Failed to remove image %s after %s: %v", ref, reason, err)
	}
}

// apply validates in and copies it onto l.
func apply(l *models.Listing, in ListingInput) error {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	rawPrice := strings.TrimSpace(in.Price)
	category := strings.ToLower(strings.TrimSpace(in.Category))

	switch {
	case title == "":
		return invalid("title", "title is required")
	case description == "":
		return invalid("description", "description is required")
	case rawPrice == "":
		return invalid("price", "price is required")
	case category == "":
		return invalid("category", "category is required")
	}

	price, err := strconv.ParseFloat(rawPrice, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return invalid("price", "price must be a number")
	}
	if price < 0 {
		return invalid("price", "price must not be negative")
	}
	price = models.RoundPrice(price)
	if price > models.MaxPrice {
		return invalid("price", "price must not exceed %.2f", models.MaxPrice)
	}
	if !models.IsCategory(category) {
		return invalid("category", "category must be one of %s", strings.Join(models.Categories, ", "))
	}

	l.Title = title
	l.Description = description
	l.Price = price
	l.Category = category
	l.Location = strings.TrimSpace(in.Location)
	l.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	return nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConstraint):
		return invalid("", "listing rejected: %s", repository.ErrConstraint)
	}
	return err
}
