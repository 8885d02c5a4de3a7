package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	navigateURL   string
	navigateBlock string
)

var navigateCmd = &cobra.Command{
	Use:   "navigate",
	Short: "Navigate to a URL and print the resulting page title",
	RunE: func(cmd *cobra.Command, args []string) error {
		if navigateURL == "" {
			return fmt.Errorf("--url is required")
		}

		ctx, cancel := signalContext()
		defer cancel()

		sess, err := openSession(ctx)
		if err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		defer sess.Close(ctx)

		if navigateBlock != "" {
			categories := strings.Split(navigateBlock, ",")
			if err := sess.tab.BlockResources(ctx, categories); err != nil {
				return fmt.Errorf("blocking resources: %w", err)
			}
		}

		if err := sess.tab.Command(ctx, "Page.enable", nil, nil); err != nil {
			return fmt.Errorf("enabling page events: %w", err)
		}
		if err := sess.tab.Command(ctx, "Page.navigate", map[string]string{"url": navigateURL}, nil); err != nil {
			return fmt.Errorf("navigating to %s: %w", navigateURL, err)
		}
		if _, err := sess.tab.WaitForEvent(ctx, "Page.loadEventFired", nil); err != nil {
			return fmt.Errorf("waiting for load: %w", err)
		}

		var result struct {
			Result struct {
				Value string `json:"value"`
			} `json:"result"`
		}
		if err := sess.tab.Command(ctx, "Runtime.evaluate", map[string]interface{}{
			"expression":    "document.title",
			"returnByValue": true,
		}, &result); err != nil {
			return fmt.Errorf("reading title: %w", err)
		}

		fmt.Printf("Navigated to %s\n", navigateURL)
		fmt.Printf("Title: %s\n", result.Result.Value)
		return nil
	},
}

func init() {
	navigateCmd.Flags().StringVar(&navigateURL, "url", "", "URL to navigate to")
	navigateCmd.Flags().StringVar(&navigateBlock, "block", "", "comma-separated CDP resourceType categories to block, e.g. Image,Stylesheet")
}
