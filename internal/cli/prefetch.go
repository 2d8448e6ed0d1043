package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "prefetch <url>...",
		Short: "Warm the image cache for a batch of URLs",
		Args:  cobra.MinimumNArgs(1),
		Run:   runPrefetch,
	}
	RootCmd.AddCommand(cmd)
}

func runPrefetch(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	a.images.PreloadImages(cmd.Context(), args, a.cfg.Image.PreloadConcurrency)

	stats := a.images.Stats()
	fmt.Printf("image cache: %d stored, %d in memory\n", stats.StoredCount, stats.MemoryCount)
}
