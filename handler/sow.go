package handler

import (
	"context"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/lifecycle"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/middleware"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/model"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/pkg/logger"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/service"
	"github.com/shopspring/decimal"
)

type SOWHandler struct {
	store   service.SOWStore
	archive *service.ArchiveService // nil when archiving is disabled
}

func NewSOWHandler(store service.SOWStore, archive *service.ArchiveService) *SOWHandler {
	return &SOWHandler{store: store, archive: archive}
}

// SOWRequest carries the owner-editable fields. The price is supplied as a
// pre-tax subtotal plus a tax rate; the server folds both into the stored
// tax-inclusive total and the embedded financial summary. The rate itself is
// never persisted.
type SOWRequest struct {
	ClientName   string          `json:"client_name"`
	Title        string          `json:"title"`
	Deliverables string          `json:"deliverables"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	Currency     string          `json:"currency"`
	PaymentType  string          `json:"payment_type"`
}

func (r SOWRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ClientName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Subtotal, validation.By(nonNegativeDecimal)),
		validation.Field(&r.TaxRate, validation.By(percentageDecimal)),
		validation.Field(&r.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&r.PaymentType, validation.Required,
			validation.In(model.PaymentOneTime, model.PaymentMonthly)),
	)
}

func nonNegativeDecimal(value interface{}) error {
	d, ok := value.(decimal.Decimal)
	if !ok || d.IsNegative() {
		return errors.New("must be a non-negative number")
	}
	return nil
}

func percentageDecimal(value interface{}) error {
	d, ok := value.(decimal.Decimal)
	if !ok || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("must be between 0 and 100")
	}
	return nil
}

// SignRequest carries the signer's name for either signing action
type SignRequest struct {
	Name string `json:"name"`
}

func (r SignRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
	)
}

// Create creates a new draft owned by the authenticated user
func (h *SOWHandler) Create(c *gin.Context) {
	var req SOWRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc := &model.SOWDocument{
		ID:           uuid.New().String(),
		Slug:         model.NewSlug(req.ClientName),
		OwnerID:      middleware.GetUserID(c),
		ClientName:   req.ClientName,
		Title:        req.Title,
		Deliverables: model.AppendFinancialSummary(req.Deliverables, req.Subtotal, req.TaxRate, req.Currency),
		Price:        model.ComputeTotal(req.Subtotal, req.TaxRate),
		Currency:     req.Currency,
		PaymentType:  req.PaymentType,
		Status:       model.StatusDraft,
	}

	if err := h.store.Insert(c.Request.Context(), doc); err != nil {
		logger.Error(c.Request.Context(), "failed to create document", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save document"})
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// List returns all documents owned by the authenticated user
func (h *SOWHandler) List(c *gin.Context) {
	docs, err := h.store.ListByOwner(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list documents", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load documents"})
		return
	}

	if docs == nil {
		docs = []*model.SOWDocument{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// Get returns a single owned document
func (h *SOWHandler) Get(c *gin.Context) {
	doc, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil || doc.OwnerID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	c.JSON(http.StatusOK, doc)
}

// GetBySlug is the public counterparty view
func (h *SOWHandler) GetBySlug(c *gin.Context) {
	doc, err := h.store.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	c.JSON(http.StatusOK, doc)
}

// Update edits the mutable fields of an owned document
func (h *SOWHandler) Update(c *gin.Context) {
	var req SOWRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action := lifecycle.EditContent{
		ClientName:   req.ClientName,
		Title:        req.Title,
		Deliverables: model.AppendFinancialSummary(req.Deliverables, req.Subtotal, req.TaxRate, req.Currency),
		Price:        model.ComputeTotal(req.Subtotal, req.TaxRate),
		Currency:     req.Currency,
		PaymentType:  req.PaymentType,
	}

	h.transition(c, c.Param("id"), action)
}

// SignAsProvider records the owner's signature. The document status does not
// change; only the client signature flips it to signed.
func (h *SOWHandler) SignAsProvider(c *gin.Context) {
	var req SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.transition(c, c.Param("id"), lifecycle.SignProvider{Name: req.Name})
}

// SignAsClient records the counterparty's signature on the public slug route
func (h *SOWHandler) SignAsClient(c *gin.Context) {
	var req SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.store.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	h.transition(c, doc.ID, lifecycle.SignClient{Name: req.Name})
}

// ArchiveLink returns a short-lived download URL for the archived snapshot of
// an owned document
func (h *SOWHandler) ArchiveLink(c *gin.Context) {
	ctx := c.Request.Context()

	doc, err := h.store.Get(ctx, c.Param("id"))
	if err != nil || doc.OwnerID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	if h.archive == nil || doc.ArchiveKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No archived snapshot"})
		return
	}

	url, err := h.archive.GetPresignedURL(ctx, doc.ArchiveKey)
	if err != nil {
		logger.Error(ctx, "failed to presign snapshot", "error", err, "document_id", doc.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate download link"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// transition runs the lifecycle guards for action and, when accepted,
// persists it as one atomic update.
func (h *SOWHandler) transition(c *gin.Context, id string, action lifecycle.Action) {
	ctx := c.Request.Context()

	doc, err := h.store.Get(ctx, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	actor := lifecycle.Actor{ID: middleware.GetUserID(c), Email: middleware.GetEmail(c)}
	if _, err := lifecycle.Transition(*doc, action, actor); err != nil {
		status, msg := rejectionResponse(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	updated, err := h.store.Apply(ctx, id, action)
	if err != nil {
		// The store re-checks the paid guard; a payment can land between the
		// snapshot above and the update
		if errors.Is(err, lifecycle.ErrAlreadyPaid) {
			status, msg := rejectionResponse(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}
		logger.Error(ctx, "failed to apply update", "error", err, "document_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save document"})
		return
	}

	if h.archive != nil && updated.FullySigned() && updated.ArchiveKey == "" {
		switch action.(type) {
		case lifecycle.SignProvider, lifecycle.SignClient:
			go h.archiveSnapshot(updated)
		}
	}

	c.JSON(http.StatusOK, updated)
}

func rejectionResponse(err error) (int, string) {
	switch {
	case errors.Is(err, lifecycle.ErrNotOwner):
		// Hide existence from non-owners
		return http.StatusNotFound, "Document not found"
	case errors.Is(err, lifecycle.ErrOwnerCountersign):
		return http.StatusForbidden, "The owner cannot sign as the client"
	case errors.Is(err, lifecycle.ErrAlreadyPaid):
		return http.StatusConflict, "Document is already paid"
	case errors.Is(err, lifecycle.ErrNotEligible):
		return http.StatusConflict, "Both signatures are required before payment"
	}
	return http.StatusInternalServerError, "Update failed"
}

// archiveSnapshot uploads the fully signed contract text in the background
func (h *SOWHandler) archiveSnapshot(doc *model.SOWDocument) {
	ctx := context.Background()

	key, err := h.archive.StoreSnapshot(ctx, doc)
	if err != nil {
		logger.Error(ctx, "failed to archive contract snapshot", "error", err, "document_id", doc.ID)
		return
	}
	if err := h.store.SetArchiveKey(ctx, doc.ID, key); err != nil {
		logger.Error(ctx, "failed to record archive key", "error", err, "document_id", doc.ID)
		return
	}
	logger.Info(ctx, "contract snapshot archived", "document_id", doc.ID, "key", key)
}
