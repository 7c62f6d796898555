// Package icons stores plan icons in an S3-compatible object store.
package icons

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// maxImportSize caps how much an icon:import fetch will read.
const maxImportSize = 10 << 20

// Icon is a stored icon image.
type Icon struct {
	Data        []byte
	ContentType string
}

// Store persists plan icons as objects keyed "<plan_id>/original".
type Store struct {
	client *s3.Client
	bucket string
	httpc  *http.Client
}

// NewStore creates an icon store against the given bucket. Endpoint is
// optional and supports S3-compatible services (R2, MinIO, LocalStack).
func NewStore(region, bucket, endpoint, accessKeyID, secretAccessKey string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if accessKeyID != "" && secretAccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	}

	clientOptions := []func(*s3.Options){}
	if endpoint != "" {
		clientOptions = append(clientOptions, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &Store{
		client: s3.NewFromConfig(cfg, clientOptions...),
		bucket: bucket,
		httpc:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func iconKey(planID string) string {
	return planID + "/original"
}

// Put stores the original icon for a plan, preserving its content type.
func (s *Store) Put(ctx context.Context, planID string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(iconKey(planID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to store icon for plan %s: %w", planID, err)
	}
	return nil
}

// Get retrieves the original icon for a plan.
func (s *Store) Get(ctx context.Context, planID string) (*Icon, error) {
	object, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(iconKey(planID)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch icon for plan %s: %w", planID, err)
	}
	defer object.Body.Close()

	data, err := io.ReadAll(object.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read icon for plan %s: %w", planID, err)
	}

	contentType := "application/octet-stream"
	if object.ContentType != nil {
		contentType = *object.ContentType
	}
	return &Icon{Data: data, ContentType: contentType}, nil
}

// ImportFromURL fetches an image server-side and stores it as the plan's
// icon. The source's content type is preserved.
func (s *Store) ImportFromURL(ctx context.Context, planID, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("invalid icon source url: %w", err)
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch icon from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("icon source %s returned status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImportSize+1))
	if err != nil {
		return fmt.Errorf("failed to read icon from %s: %w", url, err)
	}
	if len(data) > maxImportSize {
		return fmt.Errorf("icon from %s exceeds %d bytes", url, maxImportSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.Put(ctx, planID, data, contentType)
}

// ExtensionFromContentType maps an image content type to a file extension.
func ExtensionFromContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}
