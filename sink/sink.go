// Package sink persists captured download bytes to a storage backend and
// returns a retrievable URL, grounded on tomasbasham/har-capture's
// internal/storage package (Uploader interface, UploadRequest/UploadResult
// shape, GCS implementation configured via functional options) and its
// internal/operation/worker.go object-naming convention, both generalized
// from HAR capture artefacts to tab.Download bytes: NewDownloadUpload
// derives an UploadRequest's ObjectName from the download itself rather
// than requiring the caller to build one. The core manager/transport/tab
// packages never import this package directly — cmd/headlessctl wires a
// sink.Uploader in as an optional consumer of a completed download.
package sink

import (
	"bytes"
	"context"
	"io"
	"mime"
	"time"

	"github.com/wippy-projects/headless/tab"
)

// Uploader persists one artefact and returns a URL to retrieve it.
type Uploader interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
}

// UploadRequest describes one artefact to persist.
type UploadRequest struct {
	// ObjectName is the backend-relative path (bucket key or file path
	// under the local root) the artefact is stored at.
	ObjectName string

	// Content is the artefact's bytes.
	Content io.Reader

	// ContentType is the artefact's MIME type, as reported by the
	// response headers that triggered download capture.
	ContentType string
}

// UploadResult is the outcome of a successful upload.
type UploadResult struct {
	// ObjectName is the backend-relative path the artefact was stored at.
	ObjectName string

	// URL retrieves the object: a signed GCS URL, or a file:// URL for
	// LocalUploader.
	URL string

	// ExpiresAt is when URL stops being valid. Zero for LocalUploader,
	// whose file:// URLs never expire.
	ExpiresAt time.Time
}

// NewDownloadUpload builds the UploadRequest for a captured download,
// deriving its object name the way tomasbasham/har-capture's worker.go
// objectPath derives one for HAR/screenshot artefacts:
// downloads/<date>/<operationID>/<name>, ending in the download's own
// filename when the response carried one via Content-Disposition, or a
// name synthesized from its detected MIME type when it didn't.
func NewDownloadUpload(dl *tab.Download, operationID string) *UploadRequest {
	return &UploadRequest{
		ObjectName:  downloadObjectName(dl, operationID),
		Content:     bytes.NewReader(dl.Data),
		ContentType: dl.MimeType,
	}
}

func downloadObjectName(dl *tab.Download, operationID string) string {
	name := dl.Filename
	if name == "" {
		name = "download" + extensionForMimeType(dl.MimeType)
	}
	date := time.Now().UTC().Format("2006/01/02")
	return "downloads/" + date + "/" + operationID + "/" + name
}

func extensionForMimeType(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
