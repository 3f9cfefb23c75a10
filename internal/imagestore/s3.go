package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ironsheep/doc-intake-mcp/internal/document"
	"github.com/ironsheep/doc-intake-mcp/internal/imaging"
)

// PutObjectAPI is the part of the S3 client the store uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 writes images to s3://Bucket/Prefix/{personKey}/.
type S3 struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3 creates an S3 store using client.
func NewS3(client PutObjectAPI, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// DialS3 loads the default AWS configuration (environment, shared config,
// instance role) and creates an S3 store.
func DialS3(ctx context.Context, bucket, prefix string) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// Save uploads img as a JPEG object and returns its s3:// URL.
func (s *S3) Save(ctx context.Context, personKey string, kind document.Kind, img image.Image) (string, error) {
	if err := validFolder(personKey); err != nil {
		return "", err
	}

	data, err := imaging.EncodeJPEG(img, JPEGQuality)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStore, err)
	}

	key := path.Join(s.prefix, personKey, FileName(kind))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: upload %s: %w", ErrStore, key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
