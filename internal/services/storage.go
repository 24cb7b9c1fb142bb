package services

import (
	"bytes"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/rs/zerolog/log"
)

// StorageService archives knowledge documents to S3-compatible object
// storage. The vector index holds only text chunks; the archive keeps
// the original bytes.
type StorageService struct {
	s3Client *s3.S3
	bucket   string
}

// NewStorageService creates a new storage service from S3_* environment
// variables.
func NewStorageService() (*StorageService, error) {
	endpoint := os.Getenv("S3_ENDPOINT")
	accessKey := os.Getenv("S3_ACCESS_KEY")
	secretKey := os.Getenv("S3_SECRET_KEY")
	bucket := os.Getenv("S3_BUCKET")

	if accessKey == "" || secretKey == "" || bucket == "" {
		return nil, fmt.Errorf("S3 configuration missing")
	}

	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String("us-east-1"),
		Endpoint:         aws.String(endpoint),
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		bucket:   bucket,
	}, nil
}

// Archive stores document bytes under the given key and returns the key.
// The content type is detected from the data when not provided.
func (s *StorageService) Archive(key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	_, err := s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Info().Str("key", key).Int("size", len(data)).Msg("document archived")
	return key, nil
}

// Fetch reads archived document bytes back.
func (s *StorageService) Fetch(key string) ([]byte, error) {
	out, err := s.s3Client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from S3: %w", err)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("failed to read S3 object: %w", err)
	}
	return buf.Bytes(), nil
}

// Delete removes an archived document.
func (s *StorageService) Delete(key string) error {
	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}
