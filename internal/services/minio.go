package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ImageStorage stocke les images produit et renvoie leur URL publique.
type ImageStorage interface {
	Upload(ctx context.Context, productID uuid.UUID, filename string, r io.Reader, size int64, contentType string) (string, error)
}

type MinioImageStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string // ex: http://minio:9000
}

func NewMinioImageStorage(client *minio.Client, bucket, publicURL string) *MinioImageStorage {
	return &MinioImageStorage{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

// EnsureBucket crée le bucket au démarrage s'il n'existe pas.
func (s *MinioImageStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("vérification bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

func (s *MinioImageStorage) Upload(ctx context.Context, productID uuid.UUID, filename string, r io.Reader, size int64, contentType string) (string, error) {
	object := fmt.Sprintf("products/%s/%s%s", productID, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	_, err := s.client.PutObject(ctx, s.bucket, object, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload MinIO: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, object), nil
}
