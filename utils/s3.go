package utils

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/raushankrgupta/virtual-tryon-studio/models"
)

// ResultArchiver keeps a copy of try-on outputs. Returned values are object keys.
type ResultArchiver interface {
	ArchiveResult(ctx context.Context, sessionID string, result *models.TryOnResult) (outputKey, maskedKey string, err error)
}

// S3Archive uploads try-on outputs to a bucket
type S3Archive struct {
	client *s3.Client
	bucket string
}

// InitS3 initializes the S3 client
func InitS3(ctx context.Context, region, bucket string) (*S3Archive, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &S3Archive{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// ArchiveResult stores both images under generated_images/<session>/<date>/.
func (a *S3Archive) ArchiveResult(ctx context.Context, sessionID string, result *models.TryOnResult) (string, string, error) {
	prefix := fmt.Sprintf("generated_images/%s/%s/%s", sessionID, time.Now().UTC().Format("2006-01-02"), uuid.NewString())

	outputKey, err := a.upload(ctx, prefix+"_output", result.Output)
	if err != nil {
		return "", "", err
	}
	maskedKey, err := a.upload(ctx, prefix+"_masked", result.Masked)
	if err != nil {
		return outputKey, "", err
	}
	return outputKey, maskedKey, nil
}

func (a *S3Archive) upload(ctx context.Context, keyBase string, img models.Image) (string, error) {
	objectKey := keyBase
	if exts, _ := mime.ExtensionsByType(img.MIMEType); len(exts) > 0 {
		objectKey += exts[0]
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(img.MIMEType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return objectKey, nil
}
