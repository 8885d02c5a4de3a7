package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippy-projects/headless/sink"
	"github.com/wippy-projects/headless/tab"
)

var (
	downloadURL       string
	downloadSelector  string
	downloadOperation string
	downloadBucket    string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Navigate to a URL, click a selector that triggers a download, and persist the captured bytes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if downloadURL == "" {
			return fmt.Errorf("--url is required")
		}
		if downloadSelector == "" {
			return fmt.Errorf("--selector is required")
		}
		if downloadOperation == "" {
			return fmt.Errorf("--operation is required")
		}

		ctx, cancel := signalContext()
		defer cancel()

		sess, err := openSession(ctx)
		if err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		defer sess.Close(ctx)

		if err := sess.tab.Command(ctx, "Page.enable", nil, nil); err != nil {
			return fmt.Errorf("enabling page events: %w", err)
		}
		if err := sess.tab.Command(ctx, "Page.navigate", map[string]string{"url": downloadURL}, nil); err != nil {
			return fmt.Errorf("navigating to %s: %w", downloadURL, err)
		}
		if _, err := sess.tab.WaitForEvent(ctx, "Page.loadEventFired", nil); err != nil {
			return fmt.Errorf("waiting for load: %w", err)
		}

		dl, err := sess.tab.ExpectDownload(ctx, clickAction(sess.tab, downloadSelector))
		if err != nil {
			return fmt.Errorf("capturing download: %w", err)
		}

		uploader, err := newUploader(ctx)
		if err != nil {
			return fmt.Errorf("preparing storage backend: %w", err)
		}
		result, err := uploader.Upload(ctx, sink.NewDownloadUpload(dl, downloadOperation))
		if err != nil {
			return fmt.Errorf("persisting download: %w", err)
		}

		fmt.Printf("Captured %d bytes (%s), stored at %s\n", dl.Size, dl.MimeType, result.URL)
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVar(&downloadURL, "url", "", "URL to navigate to")
	downloadCmd.Flags().StringVar(&downloadSelector, "selector", "", "CSS selector of the element to click to trigger the download")
	downloadCmd.Flags().StringVar(&downloadOperation, "operation", "", "identifier this download is stored under (the object path is derived as downloads/<date>/<operation>/<filename>)")
	downloadCmd.Flags().StringVar(&downloadBucket, "bucket", "", "GCS bucket to upload to (defaults to local disk under ./downloads)")
}

// clickAction builds the ExpectDownload action that clicks selector via a
// Runtime.evaluate call, since the core tab package exposes only the raw
// Command/WaitForEvent primitives, not a DOM-level click helper.
func clickAction(t *tab.Tab, selector string) func(context.Context) error {
	return func(ctx context.Context) error {
		expression := fmt.Sprintf("document.querySelector(%q).click()", selector)
		return t.Command(ctx, "Runtime.evaluate", map[string]interface{}{"expression": expression}, nil)
	}
}

func newUploader(ctx context.Context) (sink.Uploader, error) {
	if downloadBucket != "" {
		return sink.NewGCSUploader(ctx, downloadBucket)
	}
	return sink.NewLocalUploader("./downloads")
}
