package sink

import (
	"strings"
	"testing"

	"github.com/wippy-projects/headless/tab"
)

func TestNewDownloadUploadUsesCapturedFilename(t *testing.T) {
	dl := &tab.Download{Data: []byte("pdf bytes"), Filename: "report.pdf", MimeType: "application/pdf"}
	req := NewDownloadUpload(dl, "op-1")

	if !strings.HasSuffix(req.ObjectName, "op-1/report.pdf") {
		t.Errorf("ObjectName = %q, want a path ending in op-1/report.pdf", req.ObjectName)
	}
	if !strings.HasPrefix(req.ObjectName, "downloads/") {
		t.Errorf("ObjectName = %q, want a downloads/ prefix", req.ObjectName)
	}
	if req.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q, want application/pdf", req.ContentType)
	}
}

func TestNewDownloadUploadSynthesizesNameWithoutFilename(t *testing.T) {
	dl := &tab.Download{Data: []byte("pdf bytes"), MimeType: "application/pdf"}
	req := NewDownloadUpload(dl, "op-2")

	if !strings.HasSuffix(req.ObjectName, "op-2/download.pdf") {
		t.Errorf("ObjectName = %q, want a path ending in op-2/download.pdf", req.ObjectName)
	}
}

func TestNewDownloadUploadUnknownMimeTypeHasNoExtension(t *testing.T) {
	dl := &tab.Download{Data: []byte("bytes"), MimeType: "application/x-totally-unknown"}
	req := NewDownloadUpload(dl, "op-3")

	if !strings.HasSuffix(req.ObjectName, "op-3/download") {
		t.Errorf("ObjectName = %q, want a path ending in op-3/download with no extension", req.ObjectName)
	}
}
