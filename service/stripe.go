package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joshuaclark5/MicroFreelanceHub-sub000/config"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/model"
)

// SignatureHeader carries the webhook signature in the t=...,v1=... scheme
const SignatureHeader = "Stripe-Signature"

type StripeService struct {
	config     *config.StripeConfig
	httpClient *http.Client
}

func NewStripeService(cfg *config.StripeConfig) *StripeService {
	return &StripeService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CheckoutSession is the subset of the session object the app consumes
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// CreateCheckoutSession creates a hosted checkout flow scoped to one
// document's price and recurrence type and returns the redirect URL. The
// document id travels as client_reference_id so the webhook can find it.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, doc *model.SOWDocument, successURL, cancelURL string) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("client_reference_id", doc.ID)
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(doc.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(model.MinorUnits(doc.Price), 10))
	form.Set("line_items[0][price_data][product_data][name]", doc.Title)

	if doc.PaymentType == model.PaymentMonthly {
		form.Set("mode", "subscription")
		form.Set("line_items[0][price_data][recurring][interval]", "month")
	} else {
		form.Set("mode", "payment")
		if s.config.ConnectedAccountID != "" {
			form.Set("payment_intent_data[transfer_data][destination]", s.config.ConnectedAccountID)
		}
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		s.config.APIBaseURL+"/v1/checkout/sessions",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr stripeErrorResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("stripe API error: %s", apiErr.Error.Message)
		}
		return nil, fmt.Errorf("stripe API error: status %d", resp.StatusCode)
	}

	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if session.URL == "" {
		return nil, fmt.Errorf("stripe API returned no checkout URL")
	}
	return &session, nil
}

// WebhookEvent is an inbound signed payment event
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object SessionObject `json:"object"`
	} `json:"data"`
}

// SessionObject carries the fields the Payment Bridge reads off a completed
// checkout session
type SessionObject struct {
	ID                string `json:"id"`
	ClientReferenceID string `json:"client_reference_id"`
	CustomerDetails   struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Subscription string `json:"subscription"`
	Customer     string `json:"customer"`
}

// VerifyWebhookSignature checks the t=...,v1=... header against the configured
// webhook secret: HMAC-SHA256 over "timestamp.body", constant-time compare,
// and a clock-skew tolerance on the timestamp.
func (s *StripeService) VerifyWebhookSignature(header string, body []byte, receivedAt time.Time) bool {
	if s.config.WebhookSecret == "" {
		return false
	}

	timestamp, signatures := parseSignatureHeader(header)
	if timestamp == "" || len(signatures) == 0 {
		return false
	}
	timestampUnix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || timestampUnix <= 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.config.WebhookSecret))
	signedPayload := append([]byte(timestamp), '.')
	signedPayload = append(signedPayload, body...)
	_, _ = mac.Write(signedPayload)
	expected := mac.Sum(nil)

	valid := false
	for _, sigHex := range signatures {
		decoded, err := hex.DecodeString(sigHex)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, decoded) {
			valid = true
			break
		}
	}
	if !valid {
		return false
	}

	skew := receivedAt.UTC().Unix() - timestampUnix
	if skew < 0 {
		skew = -skew
	}
	return s.config.ToleranceSeconds <= 0 || skew <= int64(s.config.ToleranceSeconds)
}

func parseSignatureHeader(header string) (string, []string) {
	joined := strings.TrimSpace(header)
	if joined == "" {
		return "", nil
	}
	var t string
	v1 := make([]string, 0, 2)
	for _, part := range strings.Split(joined, ",") {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		if k == "t" && t == "" {
			t = val
			continue
		}
		if k == "v1" && val != "" {
			v1 = append(v1, val)
		}
	}
	return t, v1
}
