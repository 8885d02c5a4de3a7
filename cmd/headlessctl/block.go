package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	blockURL        string
	blockCategories string
)

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Navigate to a URL with resource categories blocked (the number of blocked requests is not reported)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if blockURL == "" {
			return fmt.Errorf("--url is required")
		}
		if blockCategories == "" {
			return fmt.Errorf("--categories is required, e.g. Image,Stylesheet,Font")
		}

		ctx, cancel := signalContext()
		defer cancel()

		sess, err := openSession(ctx)
		if err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		defer sess.Close(ctx)

		categories := strings.Split(blockCategories, ",")
		if err := sess.tab.BlockResources(ctx, categories); err != nil {
			return fmt.Errorf("enabling resource blocking: %w", err)
		}

		if err := sess.tab.Command(ctx, "Page.enable", nil, nil); err != nil {
			return fmt.Errorf("enabling page events: %w", err)
		}
		if err := sess.tab.Command(ctx, "Page.navigate", map[string]string{"url": blockURL}, nil); err != nil {
			return fmt.Errorf("navigating to %s: %w", blockURL, err)
		}
		if _, err := sess.tab.WaitForEvent(ctx, "Page.loadEventFired", nil); err != nil {
			return fmt.Errorf("waiting for load: %w", err)
		}

		fmt.Printf("Navigated to %s with %s blocked\n", blockURL, blockCategories)
		return nil
	},
}

func init() {
	blockCmd.Flags().StringVar(&blockURL, "url", "", "URL to navigate to")
	blockCmd.Flags().StringVar(&blockCategories, "categories", "", "comma-separated CDP resourceType categories to block")
}
