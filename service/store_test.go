package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joshuaclark5/MicroFreelanceHub-sub000/lifecycle"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/model"
	"github.com/shopspring/decimal"
)

func testDoc(id, ownerID string) *model.SOWDocument {
	return &model.SOWDocument{
		ID:           id,
		Slug:         "acme-" + id,
		OwnerID:      ownerID,
		ClientName:   "Acme Corp",
		Title:        "Landing page",
		Deliverables: "Build the landing page",
		Price:        decimal.NewFromInt(500),
		Currency:     "USD",
		PaymentType:  model.PaymentOneTime,
		Status:       model.StatusDraft,
	}
}

func TestMemorySOWStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySOWStore()

	doc := testDoc("d1", "u1")
	if err := store.Insert(ctx, doc); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if doc.CreatedAt.IsZero() || doc.UpdatedAt.IsZero() {
		t.Error("Expected server-assigned timestamps")
	}

	got, err := store.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Slug != "acme-d1" {
		t.Errorf("Unexpected slug: %s", got.Slug)
	}

	bySlug, err := store.GetBySlug(ctx, "acme-d1")
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	if bySlug.ID != "d1" {
		t.Errorf("Unexpected id: %s", bySlug.ID)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetBySlug(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	// Mutating the returned copy must not touch the stored record
	got.Title = "changed"
	fresh, _ := store.Get(ctx, "d1")
	if fresh.Title != "Landing page" {
		t.Error("Store handed out a shared pointer")
	}
}

func TestMemorySOWStoreListByOwner(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySOWStore()

	store.Insert(ctx, testDoc("d1", "u1"))
	store.Insert(ctx, testDoc("d2", "u1"))
	store.Insert(ctx, testDoc("d3", "u2"))

	docs, err := store.ListByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("Expected 2 documents for u1, got %d", len(docs))
	}

	docs, _ = store.ListByOwner(ctx, "nobody")
	if len(docs) != 0 {
		t.Errorf("Expected no documents, got %d", len(docs))
	}
}

func TestMemorySOWStoreApply(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySOWStore()
	store.Insert(ctx, testDoc("d1", "u1"))

	// Provider signature leaves status alone
	doc, err := store.Apply(ctx, "d1", lifecycle.SignProvider{Name: "Jane Doe"})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if doc.ProviderSign != "Jane Doe" {
		t.Errorf("Expected provider signature, got %q", doc.ProviderSign)
	}
	if doc.Status != model.StatusDraft {
		t.Errorf("Expected status draft, got %s", doc.Status)
	}

	// Client signature flips status
	doc, err = store.Apply(ctx, "d1", lifecycle.SignClient{Name: "John Client"})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if doc.Status != model.StatusSigned {
		t.Errorf("Expected status signed, got %s", doc.Status)
	}

	// Edit writes its fixed field set
	doc, err = store.Apply(ctx, "d1", lifecycle.EditContent{
		ClientName:   "Acme Corp",
		Title:        "Landing page v2",
		Deliverables: "More work",
		Price:        decimal.NewFromInt(660),
		Currency:     "USD",
		PaymentType:  model.PaymentMonthly,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if doc.Title != "Landing page v2" || doc.PaymentType != model.PaymentMonthly {
		t.Error("Edit fields not applied")
	}
	if doc.SignedBy != "John Client" {
		t.Error("Edit must not clear signatures")
	}

	// MarkPaid is idempotent at the storage level too
	doc, err = store.Apply(ctx, "d1", lifecycle.MarkPaid{})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if doc.Status != model.StatusPaid {
		t.Errorf("Expected status paid, got %s", doc.Status)
	}
	doc, err = store.Apply(ctx, "d1", lifecycle.MarkPaid{})
	if err != nil {
		t.Fatalf("Repeated Apply failed: %v", err)
	}
	if doc.Status != model.StatusPaid {
		t.Errorf("Expected status paid, got %s", doc.Status)
	}

	if _, err := store.Apply(ctx, "missing", lifecycle.MarkPaid{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// A payment can land between a handler's eligibility check and its edit; the
// store itself must refuse to overwrite a paid document.
func TestMemorySOWStoreApplyEditRacesPayment(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySOWStore()
	store.Insert(ctx, testDoc("d1", "u1"))

	if _, err := store.Apply(ctx, "d1", lifecycle.MarkPaid{}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	_, err := store.Apply(ctx, "d1", lifecycle.EditContent{
		ClientName:   "Acme Corp",
		Title:        "Rewritten after payment",
		Deliverables: "Altered scope",
		Price:        decimal.NewFromInt(1),
		Currency:     "USD",
		PaymentType:  model.PaymentOneTime,
	})
	if !errors.Is(err, lifecycle.ErrAlreadyPaid) {
		t.Fatalf("Expected ErrAlreadyPaid, got %v", err)
	}

	doc, err := store.Get(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Landing page" {
		t.Errorf("Rejected edit must not change the document, got title %q", doc.Title)
	}
	if doc.Status != model.StatusPaid {
		t.Errorf("Expected status paid, got %s", doc.Status)
	}
}

func TestMemorySOWStoreSetArchiveKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySOWStore()
	store.Insert(ctx, testDoc("d1", "u1"))

	if err := store.SetArchiveKey(ctx, "d1", "snapshots/d1.txt"); err != nil {
		t.Fatalf("SetArchiveKey failed: %v", err)
	}
	doc, _ := store.Get(ctx, "d1")
	if doc.ArchiveKey != "snapshots/d1.txt" {
		t.Errorf("Unexpected archive key: %s", doc.ArchiveKey)
	}

	if err := store.SetArchiveKey(ctx, "missing", "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemorySOWStoreLatestEligibleByOwner(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySOWStore()

	// d1: eligible, older. d2: eligible, newer. d3: missing client signature.
	// d4: already paid.
	for _, id := range []string{"d1", "d2", "d3", "d4"} {
		store.Insert(ctx, testDoc(id, "u1"))
	}
	store.Apply(ctx, "d1", lifecycle.SignProvider{Name: "Jane"})
	store.Apply(ctx, "d1", lifecycle.SignClient{Name: "John"})
	time.Sleep(5 * time.Millisecond)
	store.Apply(ctx, "d2", lifecycle.SignProvider{Name: "Jane"})
	store.Apply(ctx, "d2", lifecycle.SignClient{Name: "John"})
	store.Apply(ctx, "d3", lifecycle.SignProvider{Name: "Jane"})
	store.Apply(ctx, "d4", lifecycle.SignProvider{Name: "Jane"})
	store.Apply(ctx, "d4", lifecycle.SignClient{Name: "John"})
	store.Apply(ctx, "d4", lifecycle.MarkPaid{})

	doc, err := store.LatestEligibleByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("LatestEligibleByOwner failed: %v", err)
	}
	// d4 was touched last but is paid, so d2 must win
	if doc.ID != "d2" {
		t.Errorf("Expected d2, got %s", doc.ID)
	}

	if _, err := store.LatestEligibleByOwner(ctx, "u9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryUserStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryUserStore()

	user := &model.User{ID: "u1", Email: "jane@example.com", Name: "Jane Doe"}
	if err := user.SetPassword("hunter2hunter2"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if err := store.Insert(ctx, user); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.Insert(ctx, &model.User{ID: "u2", Email: "jane@example.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Expected ErrEmailTaken, got %v", err)
	}

	got, err := store.GetByEmail(ctx, "jane@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("Unexpected user id: %s", got.ID)
	}
	if !got.CheckPassword("hunter2hunter2") {
		t.Error("Expected password to verify")
	}
	if got.CheckPassword("wrong") {
		t.Error("Expected wrong password to fail")
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
