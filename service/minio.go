package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joshuaclark5/MicroFreelanceHub-sub000/config"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchiveService stores immutable plain-text snapshots of fully signed
// contracts in object storage.
type ArchiveService struct {
	client *minio.Client
	bucket string
	config *config.ArchiveConfig
}

func NewArchiveService(cfg *config.ArchiveConfig) (*ArchiveService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ArchiveService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *ArchiveService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// StoreSnapshot renders and uploads the signed contract text, returning the
// object key.
func (s *ArchiveService) StoreSnapshot(ctx context.Context, doc *model.SOWDocument) (string, error) {
	text := RenderSnapshot(doc)
	key := fmt.Sprintf("snapshots/%s/%s.txt", doc.OwnerID, doc.ID)

	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader([]byte(text)), int64(len(text)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	return key, nil
}

// GetPresignedURL generates a presigned URL for a stored snapshot
func (s *ArchiveService) GetPresignedURL(ctx context.Context, key string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

// RenderSnapshot produces the archived plain-text form of a contract
func RenderSnapshot(doc *model.SOWDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "STATEMENT OF WORK\n")
	fmt.Fprintf(&b, "=================\n\n")
	fmt.Fprintf(&b, "Title: %s\n", doc.Title)
	fmt.Fprintf(&b, "Client: %s\n", doc.ClientName)
	fmt.Fprintf(&b, "Reference: %s\n", doc.Slug)
	fmt.Fprintf(&b, "Price: %s %s (%s)\n\n", doc.Price.StringFixed(2), doc.Currency, doc.PaymentType)
	b.WriteString(doc.Deliverables)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Signed by provider: %s\n", doc.ProviderSign)
	fmt.Fprintf(&b, "Signed by client: %s\n", doc.SignedBy)
	fmt.Fprintf(&b, "Archived: %s\n", time.Now().UTC().Format(time.RFC3339))
	return b.String()
}
