package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SOWDocument represents a Statement of Work contract
type SOWDocument struct {
	ID           string          `json:"id"`
	Slug         string          `json:"slug"`
	OwnerID      string          `json:"owner_id"`
	ClientName   string          `json:"client_name"`
	Title        string          `json:"title"`
	Deliverables string          `json:"deliverables"`
	Price        decimal.Decimal `json:"price"` // tax-inclusive total
	Currency     string          `json:"currency"`
	PaymentType  string          `json:"payment_type"` // one_time, monthly
	Status       string          `json:"status"`       // draft, signed, paid
	SignedBy     string          `json:"signed_by,omitempty"`
	ProviderSign string          `json:"provider_sign,omitempty"`
	ArchiveKey   string          `json:"archive_key,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Status constants
const (
	StatusDraft  = "draft"
	StatusSigned = "signed"
	StatusPaid   = "paid"
)

// Payment type constants
const (
	PaymentOneTime = "one_time"
	PaymentMonthly = "monthly"
)

// FullySigned reports whether both parties have signed. Payment eligibility
// reads the two signature fields, never Status alone: a client-only-signed
// document shows as signed but is still not payable.
func (d *SOWDocument) FullySigned() bool {
	return d.ProviderSign != "" && d.SignedBy != ""
}

// Slugify lowercases s and collapses anything that is not a letter or digit
// into single dashes.
func Slugify(s string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// NewSlug derives a public lookup slug from the client name plus a random
// suffix. Uniqueness is probabilistic only; there is no store-level constraint.
func NewSlug(clientName string) string {
	base := Slugify(clientName)
	if base == "" {
		base = "sow"
	}
	return base + "-" + uuid.New().String()[:8]
}
