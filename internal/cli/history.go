package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/biliview/biliview/internal/domain"
	"github.com/biliview/biliview/internal/history"
	"github.com/spf13/cobra"
)

var historyJSONFlag bool

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage search history",
	}
	cmd.PersistentFlags().BoolVar(&historyJSONFlag, "json", false, "JSON output")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <query> [result-count]",
			Short: "Record a search submission",
			Args:  cobra.RangeArgs(1, 2),
			Run:   runHistoryAdd,
		},
		&cobra.Command{
			Use:   "list",
			Short: "List history grouped by day, pinned first",
			Run:   runHistoryList,
		},
		&cobra.Command{
			Use:   "search <keyword>",
			Short: "Search history records",
			Args:  cobra.ExactArgs(1),
			Run:   runHistorySearch,
		},
		&cobra.Command{
			Use:   "pin <id>",
			Short: "Toggle a record's pinned state",
			Args:  cobra.ExactArgs(1),
			Run:   runHistoryPin,
		},
		&cobra.Command{
			Use:   "rename <id> <name>",
			Short: "Set a record's display name",
			Args:  cobra.ExactArgs(2),
			Run:   runHistoryRename,
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Remove a record",
			Args:  cobra.ExactArgs(1),
			Run:   runHistoryRm,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Clear history (unpinned only unless --all)",
			Run:   runHistoryClear,
		},
	)
	historyClearAll := cmd.Commands()[len(cmd.Commands())-1]
	historyClearAll.Flags().Bool("all", false, "Remove pinned records too")

	RootCmd.AddCommand(cmd)
}

func openHistory() *app {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	a.history.Load()
	return a
}

func runHistoryAdd(cmd *cobra.Command, args []string) {
	a := openHistory()
	defer a.Close()

	resultCount := 0
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			exitErr("history add", fmt.Errorf("bad result count %q", args[1]))
		}
		resultCount = n
	}

	item, err := a.history.AddRecord(args[0], resultCount)
	if err != nil {
		exitErr("history add", err)
	}
	fmt.Println(item.ID)
}

func runHistoryList(cmd *cobra.Command, args []string) {
	a := openHistory()
	defer a.Close()

	if historyJSONFlag {
		out := map[string]any{
			"pinned": a.history.PinnedItems(),
			"recent": a.history.GroupedRecentItems(),
		}
		b, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(b))
		return
	}

	if pinned := a.history.PinnedItems(); len(pinned) > 0 {
		fmt.Println("置顶")
		for _, item := range pinned {
			printHistoryItem(item)
		}
	}
	for _, group := range a.history.GroupedRecentItems() {
		fmt.Println(group.Label)
		for _, item := range group.Items {
			printHistoryItem(item)
		}
	}
}

func runHistorySearch(cmd *cobra.Command, args []string) {
	a := openHistory()
	defer a.Close()

	items := a.history.Search(args[0])
	if historyJSONFlag {
		b, _ := json.MarshalIndent(items, "", "  ")
		fmt.Println(string(b))
		return
	}
	for _, item := range items {
		printHistoryItem(item)
	}
}

func runHistoryPin(cmd *cobra.Command, args []string) {
	a := openHistory()
	defer a.Close()
	if !a.history.TogglePin(args[0]) {
		exitErr("history pin", fmt.Errorf("no record %q", args[0]))
	}
}

func runHistoryRename(cmd *cobra.Command, args []string) {
	a := openHistory()
	defer a.Close()
	if !a.history.RenameRecord(args[0], args[1]) {
		exitErr("history rename", fmt.Errorf("no record %q", args[0]))
	}
}

func runHistoryRm(cmd *cobra.Command, args []string) {
	a := openHistory()
	defer a.Close()
	if !a.history.RemoveRecord(args[0]) {
		exitErr("history rm", fmt.Errorf("no record %q", args[0]))
	}
}

func runHistoryClear(cmd *cobra.Command, args []string) {
	a := openHistory()
	defer a.Close()

	all, _ := cmd.Flags().GetBool("all")
	if all {
		if err := a.history.ClearAll(); err != nil {
			exitErr("history clear", err)
		}
		return
	}
	a.history.ClearUnpinned()
}

func printHistoryItem(item domain.HistoryItem) {
	label := item.Query
	if item.DisplayName != "" {
		label = fmt.Sprintf("%s (%s)", item.DisplayName, item.Query)
	}
	marker := " "
	if item.Pinned {
		marker = "*"
	}
	fmt.Printf("  %s %s  %s  %s", marker, item.ID, history.FormatFullTime(item.Timestamp), label)
	if item.ResultCount > 0 {
		fmt.Printf("  (%d results)", item.ResultCount)
	}
	fmt.Println()
}
