package tab

import (
	"mime"
	"strings"
)

// binaryContentTypes are Content-Type values that indicate a download even
// when the response carries no Content-Disposition header. Parsed with the
// standard library's mime package (no ecosystem MIME-sniffing library
// appears anywhere in the retrieved pack; this is a single-purpose parse of
// a well-known header grammar, not a general parsing concern).
var binaryContentTypes = map[string]struct{}{
	"application/pdf":          {},
	"application/octet-stream": {},
	"application/zip":          {},
}

// detectDownload implements the download-detection rule: a response is a
// download if its Content-Disposition names an attachment or a filename,
// or its Content-Type is one of a known binary/document set. The returned
// filename and mimeType are best-effort and may be empty even when
// isDownload is true.
func detectDownload(headers []headerEntry) (isDownload bool, filename, mimeType string) {
	var disposition, contentType string
	for _, h := range headers {
		switch strings.ToLower(h.Name) {
		case "content-disposition":
			disposition = h.Value
		case "content-type":
			contentType = h.Value
		}
	}

	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name, ok := params["filename"]; ok {
				filename = name
				isDownload = true
			}
		}
		if strings.Contains(disposition, "attachment") {
			isDownload = true
		}
	}

	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mimeType = mt
		} else if idx := strings.Index(contentType, ";"); idx >= 0 {
			mimeType = strings.TrimSpace(contentType[:idx])
		} else {
			mimeType = strings.TrimSpace(contentType)
		}
		if _, ok := binaryContentTypes[mimeType]; ok {
			isDownload = true
		}
	}

	return isDownload, filename, mimeType
}
