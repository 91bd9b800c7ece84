package firebase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

// signedURLTTL is how long a resolved media URL stays valid
const signedURLTTL = 15 * time.Minute

// MediaResolver turns object names in the storage bucket into signed,
// time-limited download URLs. References that are already URLs pass through.
type MediaResolver struct {
	bucket *gcs.BucketHandle
	ttl    time.Duration
}

// NewMediaResolver binds the app's default bucket
func (a *App) NewMediaResolver(ctx context.Context) (*MediaResolver, error) {
	client, err := a.FirebaseApp.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase storage client: %w", err)
	}
	bucket, err := client.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("error opening storage bucket: %w", err)
	}
	return &MediaResolver{bucket: bucket, ttl: signedURLTTL}, nil
}

// ResolveURL returns a signed URL for ref after checking the object exists
func (m *MediaResolver) ResolveURL(ctx context.Context, ref string) (string, error) {
	if isURL(ref) {
		return ref, nil
	}
	object := strings.TrimPrefix(ref, "/")
	if _, err := m.bucket.Object(object).Attrs(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return "", fmt.Errorf("media %q not found: %w", ref, err)
		}
		return "", fmt.Errorf("stat media %q: %w", ref, err)
	}
	return m.bucket.SignedURL(object, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(m.ttl),
		Scheme:  gcs.SigningSchemeV4,
	})
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://")
}
