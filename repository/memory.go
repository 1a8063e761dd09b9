package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chuka-black-market/marketplace/models"
)

// MemoryListingRepository keeps listings in process memory. It backs local
// development without Postgres (STORE_BACKEND=memory) and the handler tests.
type MemoryListingRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]models.Listing
	now    func() time.Time
}

func NewMemoryListingRepository() *MemoryListingRepository {
	return &MemoryListingRepository{
		rows: make(map[int64]models.Listing),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryListingRepository) List(_ context.Context) ([]models.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.Listing, 0, len(r.rows))
	for _, l := range r.rows {
		list = append(list, l)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	return list, nil
}

func (r *MemoryListingRepository) Get(_ context.Context, id int64) (*models.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (r *MemoryListingRepository) Create(_ context.Context, l *models.Listing) error {
	if err := checkRow(l); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := r.now()
	l.ID = r.nextID
	l.CreatedAt = now
	l.UpdatedAt = now
	r.rows[l.ID] = *l
	return nil
}

func (r *MemoryListingRepository) Update(_ context.Context, l *models.Listing) error {
	if err := checkRow(l); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.rows[l.ID]
	if !ok {
		return ErrNotFound
	}
	// updated_at must move forward even when the clock has not ticked.
	ts := r.now()
	if !ts.After(current.UpdatedAt) {
		ts = current.UpdatedAt.Add(time.Microsecond)
	}
	l.CreatedAt = current.CreatedAt
	l.UpdatedAt = ts
	r.rows[l.ID] = *l
	return nil
}

func (r *MemoryListingRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *MemoryListingRepository) Ping(context.Context) error { return nil }

// checkRow applies the products table constraints and rounds the price to
// the stored precision.
func checkRow(l *models.Listing) error {
	l.Price = models.RoundPrice(l.Price)
	if l.Price < 0 || l.Price > models.MaxPrice || !models.IsCategory(l.Category) {
		return ErrConstraint
	}
	return nil
}

// Len reports how many listings are stored.
func (r *MemoryListingRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}
