package minio

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/repository"
)

var _ repository.AssetStore = (*AssetStore)(nil)

// maxAssetBytes caps a single lesson data file.
const maxAssetBytes = 64 << 20

// Options configure the MinIO/S3 connection.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
}

// AssetStore reads lesson data files from a bucket laid out as <lesson_id>/<path>.
type AssetStore struct {
	client *minio.Client
	bucket string
}

// NewAssetStore creates the client and checks that the bucket exists.
func NewAssetStore(ctx context.Context, opts Options) (*AssetStore, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("minio: endpoint is required")
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("minio: bucket is required")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: failed to create client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio: failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("minio: bucket %s does not exist", opts.Bucket)
	}

	return &AssetStore{client: client, bucket: opts.Bucket}, nil
}

// Fetch downloads one data file. Missing objects map to domain.ErrAssetNotFound.
func (s *AssetStore) Fetch(ctx context.Context, lessonID, filePath string) ([]byte, error) {
	name, err := objectName(lessonID, filePath)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio: get %s: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxAssetBytes+1))
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", domain.ErrAssetNotFound, name)
		}
		return nil, fmt.Errorf("minio: read %s: %w", name, err)
	}
	if len(data) > maxAssetBytes {
		return nil, fmt.Errorf("minio: %s exceeds %d bytes", name, maxAssetBytes)
	}
	return data, nil
}

// objectName keeps keys inside the lesson prefix.
func objectName(lessonID, filePath string) (string, error) {
	df := domain.DataFile{Name: filePath, Path: filePath}
	if err := df.ValidatePath(); err != nil {
		return "", err
	}
	if lessonID == "" || lessonID != path.Clean(lessonID) || path.IsAbs(lessonID) || lessonID == ".." {
		return "", fmt.Errorf("minio: invalid lesson id %q", lessonID)
	}
	return lessonID + "/" + df.CleanPath(), nil
}
