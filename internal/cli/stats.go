package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Run:   runStats,
	}
	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	out := map[string]any{
		"collections": a.cache.Stats(),
		"images":      a.images.Stats(),
		"history":     map[string]int{"count": a.history.Count()},
		"path":        a.store.Path(),
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
