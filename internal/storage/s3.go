// Package storage persists materialized download artifacts in
// S3-compatible object storage (DigitalOcean Spaces in production).
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/savegram-io/savegram/internal/fetch"
)

// StoredArtifact describes where an uploaded artifact landed
type StoredArtifact struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// S3Store uploads artifacts to one bucket
type S3Store struct {
	client    *s3.Client
	bucket    string
	cdnDomain string // Spaces CDN domain for faster downloads
}

// NewS3Store creates a store configured for an S3-compatible endpoint
func NewS3Store(endpoint, region, bucket, accessKeyID, secretAccessKey string) (*S3Store, error) {
	// Generate CDN domain from bucket and region
	cdnDomain := fmt.Sprintf("https://%s.%s.cdn.digitaloceanspaces.com", bucket, region)

	// Configure custom resolver for the non-AWS endpoint
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if service == s3.ServiceID {
			return aws.Endpoint{
				URL:           endpoint,
				SigningRegion: region,
			}, nil
		}
		return aws.Endpoint{}, fmt.Errorf("unknown endpoint requested")
	})

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, secretAccessKey, "",
		)),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for DigitalOcean Spaces
	})

	return &S3Store{
		client:    client,
		bucket:    bucket,
		cdnDomain: cdnDomain,
	}, nil
}

// Save uploads one materialized artifact under a per-user key and
// returns its location. The local file is left for the caller to clean
// up.
func (s *S3Store) Save(ctx context.Context, userID int64, art *fetch.Artifact) (*StoredArtifact, error) {
	file, err := os.Open(art.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact %s: %w", art.Path, err)
	}
	defer file.Close()

	key := fmt.Sprintf("artifacts/%d/%s/%s", userID, uuid.NewString(), filepath.Base(art.Path))

	putInput := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentTypeFor(art.MediaKind)),
		ACL:         types.ObjectCannedACLPrivate, // Private by default
	}

	if _, err := s.client.PutObject(ctx, putInput); err != nil {
		return nil, fmt.Errorf("failed to upload artifact: %w", err)
	}

	return &StoredArtifact{
		Key:  key,
		URL:  fmt.Sprintf("%s/%s", s.cdnDomain, key),
		Size: art.SizeBytes,
	}, nil
}

// Delete removes an uploaded artifact
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete artifact %s: %w", key, err)
	}
	return nil
}

func contentTypeFor(kind fetch.MediaKind) string {
	switch kind {
	case fetch.MediaPhoto:
		return "image/jpeg"
	case fetch.MediaVideo:
		return "video/mp4"
	case fetch.MediaAudio:
		return "audio/mpeg"
	case fetch.MediaDocument:
		return "application/octet-stream"
	default:
		return "text/plain; charset=utf-8"
	}
}
