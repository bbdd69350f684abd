package database

import (
	"context"
	"errors"
	"sync"

	"github.com/bryan-buckman/marquee/internal/logger"
	"github.com/bryan-buckman/marquee/internal/model"
)

// Favorites is the observable view over a Store. Every mutation made through
// it wakes all live List observers, which then re-read the table.
type Favorites struct {
	store Store

	mu        sync.Mutex
	observers map[uint64]chan struct{}
	nextID    uint64
}

// NewFavorites wraps store. The caller keeps ownership of store and closes it.
func NewFavorites(store Store) *Favorites {
	return &Favorites{
		store:     store,
		observers: make(map[uint64]chan struct{}),
	}
}

// List streams the full favorites list ordered by title. The current snapshot
// is sent first, then a new snapshot after each mutation. Mutations that land
// while an observer is busy collapse into one re-read, so intermediate states
// may be skipped but the latest committed state is always delivered. The
// channel closes when ctx is done.
func (f *Favorites) List(ctx context.Context) <-chan []model.FavoriteRecord {
	out := make(chan []model.FavoriteRecord)
	id, wake := f.subscribe()

	go func() {
		defer close(out)
		defer f.unsubscribe(id)

		for {
			records, err := f.store.ListFavorites(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("favorites: list failed", "error", err)
			} else {
				select {
				case out <- records:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-wake:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Records returns a one-shot snapshot ordered by title.
func (f *Favorites) Records(ctx context.Context) ([]model.FavoriteRecord, error) {
	return f.store.ListFavorites(ctx)
}

// Get returns the record for id, or nil if there is none.
func (f *Favorites) Get(ctx context.Context, id int) (*model.FavoriteRecord, error) {
	rec, err := f.store.GetFavorite(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Upsert inserts or replaces rec and notifies observers.
func (f *Favorites) Upsert(ctx context.Context, rec model.FavoriteRecord) error {
	if err := f.store.UpsertFavorite(ctx, rec); err != nil {
		return err
	}
	f.notify()
	return nil
}

// DeleteByID removes the record if present and notifies observers.
func (f *Favorites) DeleteByID(ctx context.Context, id int) error {
	if err := f.store.DeleteFavorite(ctx, id); err != nil {
		return err
	}
	f.notify()
	return nil
}

// Observers returns the number of live List subscriptions.
func (f *Favorites) Observers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observers)
}

func (f *Favorites) subscribe() (uint64, chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	// Buffer of one: a pending wake-up already covers any later mutation.
	wake := make(chan struct{}, 1)
	f.observers[f.nextID] = wake
	return f.nextID, wake
}

func (f *Favorites) unsubscribe(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.observers, id)
}

func (f *Favorites) notify() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, wake := range f.observers {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}
