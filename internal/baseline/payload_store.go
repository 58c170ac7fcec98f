package baseline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PayloadStore owns the raw image bytes referenced by a Record's
// StoragePath. The metadata index is the source of truth for which
// paths exist; PayloadStore never invents or guesses paths.
type PayloadStore interface {
	Put(ctx context.Context, path string, bytes []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// HashPayload computes the content hash used for the ChecksumMismatch
// invariant check on read.
func HashPayload(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// PathFor builds the sharded-by-branch storage path for a baseline
// payload, rooted at <workspace>/baselines/<branch>/….
func PathFor(branch, url, element, device string) string {
	safe := func(s string) string {
		if s == "" {
			return "_"
		}
		return sanitizeSegment(s)
	}
	return filepath.Join("baselines", safe(branch), safe(url), safe(element), safe(device)+".png")
}

func sanitizeSegment(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
			b = append(b, c)
		default:
			b = append(b, '_')
		}
	}
	return string(b)
}

// localPayloadStore persists baseline payloads under a workspace
// directory tree on local disk.
type localPayloadStore struct {
	root string
}

// NewLocalPayloadStore roots payload storage at workspaceDir/baselines.
func NewLocalPayloadStore(workspaceDir string) PayloadStore {
	return &localPayloadStore{root: workspaceDir}
}

func (l *localPayloadStore) Put(_ context.Context, path string, data []byte) error {
	full := filepath.Join(l.root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir: %v", ErrStorageError, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("%w: write: %v", ErrStorageError, err)
	}
	return nil
}

func (l *localPayloadStore) Get(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.root, path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBaselineNotFound
		}
		return nil, fmt.Errorf("%w: read: %v", ErrStorageError, err)
	}
	return data, nil
}

func (l *localPayloadStore) Delete(_ context.Context, path string) error {
	if err := os.Remove(filepath.Join(l.root, path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: delete: %v", ErrStorageError, err)
	}
	return nil
}

// s3PayloadStore persists baseline payloads in an S3 bucket, for teams
// that want durable shared storage across ephemeral CI runners. Grounded
// on this codebase's aws-sdk-go-v2 uploader; credentials and retry
// behaviour are those of the *s3.Client the caller passes in.
type s3PayloadStore struct {
	client *s3.Client
	bucket string
}

// NewS3PayloadStore wraps an already-configured S3 client.
func NewS3PayloadStore(client *s3.Client, bucket string) PayloadStore {
	return &s3PayloadStore{client: client, bucket: bucket}
}

func (s *s3PayloadStore) Put(ctx context.Context, path string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return fmt.Errorf("%w: s3 put: %v", ErrStorageError, err)
	}
	return nil
}

func (s *s3PayloadStore) Get(ctx context.Context, path string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: s3 get: %v", ErrStorageError, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: s3 read: %v", ErrStorageError, err)
	}
	return data, nil
}

func (s *s3PayloadStore) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("%w: s3 delete: %v", ErrStorageError, err)
	}
	return nil
}
