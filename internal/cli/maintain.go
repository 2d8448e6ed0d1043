package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/biliview/biliview/internal/cache"
	"github.com/biliview/biliview/internal/domain"
	"github.com/spf13/cobra"
)

var maintainWatch bool

func init() {
	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run a maintenance pass (expiry sweep + LRU eviction)",
		Run:   runMaintain,
	}
	cmd.Flags().BoolVar(&maintainWatch, "watch", false, "Keep running on the regular maintenance schedule")
	RootCmd.AddCommand(cmd)
}

func runMaintain(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	if maintainWatch {
		m := cache.StartMaintenance(a.cache, a.cfg.Cache.MaintenanceDelay, a.cfg.Cache.MaintenanceInterval, a.logger)
		defer m.Stop()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		return
	}

	expiredImages := a.cache.ClearExpired(domain.CollectionImage)
	expiredData := a.cache.ClearExpired(domain.CollectionData)
	evictedImages := a.cache.EvictLRU(domain.CollectionImage, a.cfg.Cache.MaxImageEntries)
	evictedData := a.cache.EvictLRU(domain.CollectionData, a.cfg.Cache.MaxDataEntries)

	fmt.Printf("expired: %d images, %d data\n", expiredImages, expiredData)
	fmt.Printf("evicted: %d images, %d data\n", evictedImages, evictedData)
}
