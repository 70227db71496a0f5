// Package lifecycle is the single authority for SOW state transitions. Every
// mutation of a document flows through Transition as a tagged action; handlers
// never update status or signature fields ad hoc.
package lifecycle

import (
	"errors"

	"github.com/joshuaclark5/MicroFreelanceHub-sub000/model"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotOwner rejects owner-only actions from anyone else
	ErrNotOwner = errors.New("actor is not the document owner")
	// ErrOwnerCountersign rejects the owner signing in the client's place
	ErrOwnerCountersign = errors.New("owner cannot countersign as the client")
	// ErrAlreadyPaid rejects mutations of a paid document
	ErrAlreadyPaid = errors.New("document is already paid")
	// ErrNotEligible rejects payment initiation before both signatures are in
	ErrNotEligible = errors.New("document is missing a signature")
)

// Actor identifies who requested a transition. A zero ID is an anonymous
// counterparty, which is the normal case on the public signing routes.
type Actor struct {
	ID    string
	Email string
}

// Action is one of the tagged transition commands below.
type Action interface {
	isAction()
}

// EditContent replaces the mutable fields of a draft or signed document.
// Price carries the tax-inclusive total; the tax rate was already folded in.
type EditContent struct {
	ClientName   string
	Title        string
	Deliverables string
	Price        decimal.Decimal
	Currency     string
	PaymentType  string
}

// SignProvider records the owner's signature. It never changes Status.
type SignProvider struct {
	Name string
}

// SignClient records the counterparty's signature and is the only action that
// moves Status to signed.
type SignClient struct {
	Name string
}

// InitiatePayment checks checkout eligibility. It changes no fields.
type InitiatePayment struct{}

// MarkPaid records a completed payment. Idempotent: applying it to a paid
// document is a successful no-op.
type MarkPaid struct{}

func (EditContent) isAction()     {}
func (SignProvider) isAction()    {}
func (SignClient) isAction()      {}
func (InitiatePayment) isAction() {}
func (MarkPaid) isAction()        {}

// PaymentEligible reports whether a checkout session may be created. Both
// signature fields must be present; Status alone is deliberately not trusted
// (a client-only-signed document reads as signed but is not payable).
func PaymentEligible(doc model.SOWDocument) bool {
	return doc.FullySigned() && doc.Status != model.StatusPaid
}

// Transition applies action to doc on behalf of actor and returns the updated
// document, or a rejection error and the document unchanged. It is pure: no
// store, no clock, no I/O. Status only ever moves forward through
// draft -> signed -> paid.
func Transition(doc model.SOWDocument, action Action, actor Actor) (model.SOWDocument, error) {
	switch a := action.(type) {
	case EditContent:
		if actor.ID == "" || actor.ID != doc.OwnerID {
			return doc, ErrNotOwner
		}
		if doc.Status == model.StatusPaid {
			return doc, ErrAlreadyPaid
		}
		doc.ClientName = a.ClientName
		doc.Title = a.Title
		doc.Deliverables = a.Deliverables
		doc.Price = a.Price
		doc.Currency = a.Currency
		doc.PaymentType = a.PaymentType
		return doc, nil

	case SignProvider:
		if actor.ID == "" || actor.ID != doc.OwnerID {
			return doc, ErrNotOwner
		}
		// Re-signing overwrites the previous name; not rejected
		doc.ProviderSign = a.Name
		return doc, nil

	case SignClient:
		if actor.ID != "" && actor.ID == doc.OwnerID {
			return doc, ErrOwnerCountersign
		}
		doc.SignedBy = a.Name
		if doc.Status == model.StatusDraft {
			doc.Status = model.StatusSigned
		}
		return doc, nil

	case InitiatePayment:
		if doc.Status == model.StatusPaid {
			return doc, ErrAlreadyPaid
		}
		if !doc.FullySigned() {
			return doc, ErrNotEligible
		}
		return doc, nil

	case MarkPaid:
		doc.Status = model.StatusPaid
		return doc, nil
	}

	return doc, errors.New("unknown action")
}
