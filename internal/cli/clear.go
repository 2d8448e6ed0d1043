package cli

import (
	"fmt"

	"github.com/biliview/biliview/internal/domain"
	"github.com/spf13/cobra"
)

var clearAllFlag bool

func init() {
	cmd := &cobra.Command{
		Use:       "clear [data|image|history]",
		Short:     "Clear a cache collection",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"data", "image", "history"},
		Run:       runClear,
	}
	cmd.Flags().BoolVar(&clearAllFlag, "all", false, "Clear every collection")
	RootCmd.AddCommand(cmd)
}

var collectionAliases = map[string]string{
	"data":    domain.CollectionData,
	"image":   domain.CollectionImage,
	"history": domain.CollectionHistory,
}

func runClear(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	var targets []string
	switch {
	case clearAllFlag:
		targets = domain.Collections
	case len(args) == 1:
		collection, ok := collectionAliases[args[0]]
		if !ok {
			exitErr("clear", fmt.Errorf("unknown collection %q", args[0]))
		}
		targets = []string{collection}
	default:
		exitErr("clear", fmt.Errorf("specify a collection or --all"))
	}

	for _, collection := range targets {
		if collection == domain.CollectionImage {
			// Releases live handles along with the durable blobs.
			if err := a.images.Clear(); err != nil {
				exitErr("clear "+collection, err)
			}
		} else if err := a.cache.Clear(collection); err != nil {
			exitErr("clear "+collection, err)
		}
		fmt.Printf("cleared %s\n", collection)
	}
}
