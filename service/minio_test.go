package service

import (
	"strings"
	"testing"

	"github.com/joshuaclark5/MicroFreelanceHub-sub000/config"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/model"
	"github.com/shopspring/decimal"
)

func TestNewArchiveService(t *testing.T) {
	svc, err := NewArchiveService(&config.ArchiveConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "sow-archive",
	})
	if err != nil {
		t.Fatalf("NewArchiveService failed: %v", err)
	}
	if svc.bucket != "sow-archive" {
		t.Errorf("Unexpected bucket: %s", svc.bucket)
	}
}

func TestNewArchiveServiceInvalidEndpoint(t *testing.T) {
	_, err := NewArchiveService(&config.ArchiveConfig{
		Endpoint: "http://bad endpoint",
	})
	if err == nil {
		t.Error("Expected error for invalid endpoint")
	}
}

func TestRenderSnapshot(t *testing.T) {
	doc := &model.SOWDocument{
		ID:           "d1",
		Slug:         "acme-corp-1a2b3c4d",
		OwnerID:      "u1",
		ClientName:   "Acme Corp",
		Title:        "Landing page",
		Deliverables: "Build the landing page",
		Price:        decimal.RequireFromString("550.50"),
		Currency:     "USD",
		PaymentType:  model.PaymentOneTime,
		Status:       model.StatusSigned,
		ProviderSign: "Jane Doe",
		SignedBy:     "John Client",
	}

	text := RenderSnapshot(doc)

	for _, want := range []string{
		"STATEMENT OF WORK",
		"Title: Landing page",
		"Client: Acme Corp",
		"Reference: acme-corp-1a2b3c4d",
		"Price: 550.50 USD (one_time)",
		"Build the landing page",
		"Signed by provider: Jane Doe",
		"Signed by client: John Client",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected snapshot to contain %q, got:\n%s", want, text)
		}
	}
}
