package sink

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const defaultSignedURLTTL = 1 * time.Hour

// GCSUploader uploads objects to a Google Cloud Storage bucket and signs a
// time-limited retrieval URL for each one.
type GCSUploader struct {
	client     *storage.Client
	bucket     string
	ttl        time.Duration
	clientOpts []option.ClientOption
}

// GCSOption configures a GCSUploader at construction, following the
// functional-options pattern manager.Option/tab.Option use.
type GCSOption func(*GCSUploader)

// WithSignedURLTTL overrides how long a download's signed retrieval URL
// stays valid. Captured downloads tend to need a shorter window than the
// default hour (a one-shot headlessctl invocation hands the URL to its
// caller immediately); callers persisting larger or slower-to-retrieve
// artefacts can widen it instead.
func WithSignedURLTTL(d time.Duration) GCSOption {
	return func(u *GCSUploader) { u.ttl = d }
}

// WithClientOptions passes option.ClientOption values through to the
// underlying GCS client, allowing credential injection.
func WithClientOptions(opts ...option.ClientOption) GCSOption {
	return func(u *GCSUploader) { u.clientOpts = append(u.clientOpts, opts...) }
}

// NewGCSUploader creates a GCSUploader for the given bucket.
func NewGCSUploader(ctx context.Context, bucket string, opts ...GCSOption) (*GCSUploader, error) {
	u := &GCSUploader{bucket: bucket, ttl: defaultSignedURLTTL}
	for _, o := range opts {
		o(u)
	}

	client, err := storage.NewClient(ctx, u.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("sink: creating GCS client: %w", err)
	}
	u.client = client
	return u, nil
}

// Upload writes req.Content to GCS at req.ObjectName and returns a signed
// GET URL valid for u.ttl. A captured download with no detected MIME type
// (tab.Download.MimeType empty) is rejected rather than uploaded with an
// empty Content-Type, since GCS would otherwise serve it back as
// application/octet-stream regardless of what it actually was.
func (u *GCSUploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if req.ContentType == "" {
		return nil, fmt.Errorf("sink: refusing to upload %q with no Content-Type", req.ObjectName)
	}

	obj := u.client.Bucket(u.bucket).Object(req.ObjectName)
	w := obj.NewWriter(ctx)
	w.ContentType = req.ContentType

	if _, err := io.Copy(w, req.Content); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("sink: upload write failed for %q: %w", req.ObjectName, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("sink: upload close failed for %q: %w", req.ObjectName, err)
	}

	expiresAt := time.Now().Add(u.ttl)
	signedURL, err := u.client.Bucket(u.bucket).SignedURL(req.ObjectName, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("sink: signing URL for %q: %w", req.ObjectName, err)
	}

	return &UploadResult{
		ObjectName: req.ObjectName,
		URL:        signedURL,
		ExpiresAt:  expiresAt,
	}, nil
}
