package reviewer

import (
	"github.com/samvad-hq/samvad-review-relay/internal/domain"
	"github.com/samvad-hq/samvad-review-relay/internal/storage"
)

// SeenStore maps review ids onto storage keys.
type SeenStore struct {
	store storage.Store
}

// NewSeenStore wraps a storage backend.
func NewSeenStore(store storage.Store) *SeenStore {
	return &SeenStore{store: store}
}

// Has reports whether the review id was already delivered or seeded.
func (s *SeenStore) Has(id int64) (bool, error) {
	return s.store.Seen(domain.ReviewKey(id))
}

// MarkSeen records the review id.
func (s *SeenStore) MarkSeen(id int64) error {
	return s.store.Mark(domain.ReviewKey(id))
}

// FirstRun reports whether the store held no seen-state when it was opened.
func (s *SeenStore) FirstRun() bool {
	return s.store.FirstRun()
}
