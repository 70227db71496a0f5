package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/lifecycle"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/model"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/pkg/logger"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/service"
)

// maxWebhookBody caps webhook payloads well above anything Stripe sends
const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	store         service.SOWStore
	users         service.UserStore
	stripe        *service.StripeService
	publicBaseURL string
}

func NewPaymentHandler(store service.SOWStore, users service.UserStore, stripe *service.StripeService, publicBaseURL string) *PaymentHandler {
	return &PaymentHandler{store: store, users: users, stripe: stripe, publicBaseURL: publicBaseURL}
}

// Checkout creates a Stripe Checkout session for a fully signed document and
// returns the hosted payment page URL.
func (h *PaymentHandler) Checkout(c *gin.Context) {
	ctx := c.Request.Context()

	doc, err := h.store.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	if _, err := lifecycle.Transition(*doc, lifecycle.InitiatePayment{}, lifecycle.Actor{}); err != nil {
		status, msg := rejectionResponse(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	successURL := fmt.Sprintf("%s/sow/%s?paid=true", h.publicBaseURL, doc.Slug)
	cancelURL := fmt.Sprintf("%s/sow/%s", h.publicBaseURL, doc.Slug)

	session, err := h.stripe.CreateCheckoutSession(ctx, doc, successURL, cancelURL)
	if err != nil {
		logger.Error(ctx, "failed to create checkout session", "error", err, "document_id", doc.ID)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment provider unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": session.URL})
}

// MarkPaidRedirect reconciles payment from the checkout success redirect.
// Stripe's webhook usually lands first, so this is a no-op in the common
// case; applying the transition again is harmless.
func (h *PaymentHandler) MarkPaidRedirect(c *gin.Context) {
	ctx := c.Request.Context()

	doc, err := h.store.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	updated, err := h.store.Apply(ctx, doc.ID, lifecycle.MarkPaid{})
	if err != nil {
		logger.Error(ctx, "failed to mark document paid", "error", err, "document_id", doc.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save document"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Webhook handles Stripe events. The signature is verified against the raw
// body before anything is parsed; a bad signature never mutates state.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	sig := c.GetHeader(service.SignatureHeader)
	if !h.stripe.VerifyWebhookSignature(sig, body, time.Now()) {
		logger.Warn(ctx, "webhook signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	var event service.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	if event.Type != "checkout.session.completed" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	doc := h.resolveDocument(c, &event.Data.Object)
	if doc == nil {
		// Acknowledge so Stripe stops retrying an event we can never match;
		// log the session identifiers so the payment can be reconciled by hand
		logger.Warn(ctx, "could not resolve document for checkout event",
			"event_id", event.ID,
			"session_id", event.Data.Object.ID,
			"customer", event.Data.Object.Customer,
			"subscription", event.Data.Object.Subscription)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if _, err := h.store.Apply(ctx, doc.ID, lifecycle.MarkPaid{}); err != nil {
		logger.Error(ctx, "failed to mark document paid", "error", err, "document_id", doc.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save document"})
		return
	}

	logger.Info(ctx, "document marked paid via webhook", "document_id", doc.ID, "event_id", event.ID)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// resolveDocument finds the document a checkout session refers to. The
// client_reference_id set at session creation is authoritative; events
// without one fall back to the payer's email.
func (h *PaymentHandler) resolveDocument(c *gin.Context, session *service.SessionObject) *model.SOWDocument {
	ctx := c.Request.Context()

	if session.ClientReferenceID != "" {
		doc, err := h.store.Get(ctx, session.ClientReferenceID)
		if err == nil {
			return doc
		}
		logger.Warn(ctx, "checkout event references unknown document", "reference", session.ClientReferenceID)
	}

	email := session.CustomerDetails.Email
	if email == "" {
		return nil
	}
	user, err := h.users.GetByEmail(ctx, email)
	if err != nil {
		return nil
	}
	doc, err := h.store.LatestEligibleByOwner(ctx, user.ID)
	if err != nil {
		return nil
	}
	return doc
}
