package tab

import "testing"

func TestDetectDownloadContentDisposition(t *testing.T) {
	headers := []headerEntry{
		{Name: "Content-Disposition", Value: `attachment; filename="r.pdf"`},
	}
	isDownload, filename, mimeType := detectDownload(headers)
	if !isDownload {
		t.Fatal("expected attachment disposition to be detected as a download")
	}
	if filename != "r.pdf" {
		t.Errorf("filename = %q, want r.pdf", filename)
	}
	if mimeType != "" {
		t.Errorf("mimeType = %q, want empty (no Content-Type header)", mimeType)
	}
}

func TestDetectDownloadContentTypeWithoutDisposition(t *testing.T) {
	headers := []headerEntry{
		{Name: "Content-Type", Value: "application/pdf"},
	}
	isDownload, filename, mimeType := detectDownload(headers)
	if !isDownload {
		t.Fatal("expected application/pdf content type to be detected as a download")
	}
	if filename != "" {
		t.Errorf("filename = %q, want empty", filename)
	}
	if mimeType != "application/pdf" {
		t.Errorf("mimeType = %q, want application/pdf", mimeType)
	}
}

func TestDetectDownloadOrdinaryResponse(t *testing.T) {
	headers := []headerEntry{
		{Name: "Content-Type", Value: "text/html; charset=utf-8"},
	}
	isDownload, _, mimeType := detectDownload(headers)
	if isDownload {
		t.Error("ordinary HTML response should not be detected as a download")
	}
	if mimeType != "text/html" {
		t.Errorf("mimeType = %q, want text/html", mimeType)
	}
}

func TestDetectDownloadInlineDispositionWithoutFilename(t *testing.T) {
	headers := []headerEntry{
		{Name: "Content-Disposition", Value: "inline"},
		{Name: "Content-Type", Value: "application/octet-stream"},
	}
	isDownload, filename, _ := detectDownload(headers)
	if !isDownload {
		t.Error("application/octet-stream should be detected as a download regardless of disposition")
	}
	if filename != "" {
		t.Errorf("filename = %q, want empty", filename)
	}
}
