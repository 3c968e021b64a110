// Package storage offloads binary artifact payloads to S3-compatible
// object storage after a run and hands out download links.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/loomkg/loom/internal/util"
	"github.com/loomkg/loom/pkg/artifact"
	"github.com/loomkg/loom/pkg/logger"
	"github.com/loomkg/loom/pkg/tool"
)

// NewS3Client builds an S3 client from the standard environment
// variables. Returns nil when configuration loading fails.
func NewS3Client(ctx context.Context) *s3.Client {
	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client
}

// PutArtifact uploads one binary artifact payload and returns its object
// key.
func PutArtifact(ctx context.Context, client *s3.Client, conversationID string, a tool.Artifact) (string, error) {
	bucket := util.GetEnv("AWS_BUCKET")
	key := fmt.Sprintf("artifacts/%s/%s", conversationID, a.ID)

	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(a.Data),
		ContentType: aws.String(a.MimeType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact to S3: %v", err)
	}
	return key, nil
}

// PresignArtifact generates a time-limited download link for an uploaded
// artifact.
func PresignArtifact(ctx context.Context, client *s3.Client, key string) (string, error) {
	bucket := util.GetEnv("AWS_BUCKET")

	presigner := s3.NewPresignClient(client)
	out, err := presigner.PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(15*time.Minute),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate download link: %w", err)
	}
	return out.URL, nil
}

// OffloadBinaries uploads every binary artifact's payload and swaps it
// for a download URL. Upload failures leave the payload inline so the
// caller still gets the data.
func OffloadBinaries(ctx context.Context, client *s3.Client, conversationID string, artifacts []tool.Artifact) []tool.Artifact {
	if client == nil {
		return artifacts
	}
	for i, a := range artifacts {
		if a.Type != artifact.TypeBinary || len(a.Data) == 0 {
			continue
		}
		key, err := PutArtifact(ctx, client, conversationID, a)
		if err != nil {
			logger.Error("failed to offload artifact", "artifact", a.ID, "err", err)
			continue
		}
		url, err := PresignArtifact(ctx, client, key)
		if err != nil {
			logger.Error("failed to presign artifact", "artifact", a.ID, "err", err)
			continue
		}
		artifacts[i].URL = url
		artifacts[i].Data = nil
	}
	return artifacts
}
