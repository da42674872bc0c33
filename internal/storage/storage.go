package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aldoetobex/debt-recovery-backend/internal/config"
)

// ObjectStore is the slice of the upload service the core needs: bytes are
// uploaded out-of-band, we only sign downloads and remove objects.
type ObjectStore interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// New picks the backend named by STORAGE_PROVIDER. "none" returns nil.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Provider {
	case "supabase":
		return NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket), nil
	case "s3":
		return NewS3(ctx, cfg.S3Bucket)
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
}
