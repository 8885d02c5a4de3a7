package sink

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

var (
	_ Uploader = (*LocalUploader)(nil)
	_ Uploader = (*GCSUploader)(nil)
)

func TestLocalUploaderWritesUnderRoot(t *testing.T) {
	dir := t.TempDir()
	u, err := NewLocalUploader(dir)
	if err != nil {
		t.Fatal(err)
	}

	content := []byte("%PDF-1.4 fake contents")
	result, err := u.Upload(context.Background(), &UploadRequest{
		ObjectName:  "downloads/r.pdf",
		Content:     bytes.NewReader(content),
		ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatal(err)
	}

	written, err := os.ReadFile(filepath.Join(dir, "downloads", "r.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(written, content) {
		t.Errorf("written content = %q, want %q", written, content)
	}
	if result.ObjectName != "downloads/r.pdf" {
		t.Errorf("ObjectName = %q, want downloads/r.pdf", result.ObjectName)
	}
	if !result.ExpiresAt.IsZero() {
		t.Error("LocalUploader results should never expire")
	}
}

func TestNewLocalUploaderCreatesRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "root")
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("precondition: %s should not exist yet", dir)
	}
	if _, err := NewLocalUploader(dir); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("expected %s to exist as a directory after NewLocalUploader", dir)
	}
}
