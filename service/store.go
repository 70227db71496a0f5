package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/joshuaclark5/MicroFreelanceHub-sub000/lifecycle"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/model"
)

var (
	// ErrNotFound is returned for missing documents and users
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned when a signup email is already registered
	ErrEmailTaken = errors.New("email already registered")
)

// SOWStore persists SOW documents. Apply executes one tagged lifecycle command
// as a single atomic partial update; callers run lifecycle.Transition first for
// authorization and guards.
type SOWStore interface {
	Insert(ctx context.Context, doc *model.SOWDocument) error
	Get(ctx context.Context, id string) (*model.SOWDocument, error)
	GetBySlug(ctx context.Context, slug string) (*model.SOWDocument, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.SOWDocument, error)
	Apply(ctx context.Context, id string, action lifecycle.Action) (*model.SOWDocument, error)
	SetArchiveKey(ctx context.Context, id, key string) error
	// LatestEligibleByOwner backs the webhook email fallback: the owner's most
	// recently updated fully-signed, unpaid document.
	LatestEligibleByOwner(ctx context.Context, ownerID string) (*model.SOWDocument, error)
}

// UserStore persists provider accounts
type UserStore interface {
	Insert(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// MemorySOWStore is a mutex-guarded map store used in dev mode and by tests
type MemorySOWStore struct {
	mu   sync.RWMutex
	docs map[string]*model.SOWDocument
}

func NewMemorySOWStore() *MemorySOWStore {
	return &MemorySOWStore{docs: make(map[string]*model.SOWDocument)}
}

func (s *MemorySOWStore) Insert(ctx context.Context, doc *model.SOWDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	stored := *doc
	s.docs[doc.ID] = &stored
	return nil
}

func (s *MemorySOWStore) Get(ctx context.Context, id string) (*model.SOWDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (s *MemorySOWStore) GetBySlug(ctx context.Context, slug string) (*model.SOWDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.docs {
		if doc.Slug == slug {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemorySOWStore) ListByOwner(ctx context.Context, ownerID string) ([]*model.SOWDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.SOWDocument
	for _, doc := range s.docs {
		if doc.OwnerID == ownerID {
			copied := *doc
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemorySOWStore) Apply(ctx context.Context, id string, action lifecycle.Action) (*model.SOWDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}

	// Each command writes its fixed field set, mirroring the SQL statements in
	// the Postgres store.
	switch a := action.(type) {
	case lifecycle.EditContent:
		if doc.Status == model.StatusPaid {
			return nil, lifecycle.ErrAlreadyPaid
		}
		doc.ClientName = a.ClientName
		doc.Title = a.Title
		doc.Deliverables = a.Deliverables
		doc.Price = a.Price
		doc.Currency = a.Currency
		doc.PaymentType = a.PaymentType
	case lifecycle.SignProvider:
		doc.ProviderSign = a.Name
	case lifecycle.SignClient:
		doc.SignedBy = a.Name
		if doc.Status == model.StatusDraft {
			doc.Status = model.StatusSigned
		}
	case lifecycle.MarkPaid:
		doc.Status = model.StatusPaid
	case lifecycle.InitiatePayment:
		// checkout creation persists nothing
	default:
		return nil, errors.New("unknown action")
	}

	doc.UpdatedAt = time.Now()
	copied := *doc
	return &copied, nil
}

func (s *MemorySOWStore) SetArchiveKey(ctx context.Context, id, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	doc.ArchiveKey = key
	doc.UpdatedAt = time.Now()
	return nil
}

func (s *MemorySOWStore) LatestEligibleByOwner(ctx context.Context, ownerID string) (*model.SOWDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.SOWDocument
	for _, doc := range s.docs {
		if doc.OwnerID != ownerID || !doc.FullySigned() || doc.Status == model.StatusPaid {
			continue
		}
		if latest == nil || doc.UpdatedAt.After(latest.UpdatedAt) {
			latest = doc
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

// MemoryUserStore is the in-memory account directory
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*model.User)}
}

func (s *MemoryUserStore) Insert(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrEmailTaken
		}
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *MemoryUserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}
