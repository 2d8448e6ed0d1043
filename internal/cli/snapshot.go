package cli

import (
	"encoding/json"
	"fmt"

	"github.com/biliview/biliview/internal/videoshot"
	"github.com/spf13/cobra"
)

var (
	snapshotCID   int64
	snapshotFrame int
	snapshotWarm  bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "snapshot <bvid>",
		Short: "Fetch video snapshot metadata",
		Long: "Fetches sprite-sheet snapshot metadata for a video and prints the\n" +
			"sheet layout. With --frame the location of one frame is printed; with\n" +
			"--warm the initial sheet batch is fetched into the image cache.",
		Args: cobra.ExactArgs(1),
		Run:  runSnapshot,
	}
	cmd.Flags().Int64Var(&snapshotCID, "cid", 0, "Part cid (default: first part)")
	cmd.Flags().IntVar(&snapshotFrame, "frame", -1, "Print the location of this frame")
	cmd.Flags().BoolVar(&snapshotWarm, "warm", false, "Fetch the initial sheet batch")
	RootCmd.AddCommand(cmd)
}

func runSnapshot(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	client := videoshot.NewClient(a.cfg.API.BaseURL, a.cfg.API.ProxyPrefix, a.logger)
	client.SetRetryPolicy(a.cfg.Videoshot.MaxRetries, a.cfg.Videoshot.RetryDelay)

	data, err := client.FetchVideoshot(cmd.Context(), args[0], snapshotCID)
	if err != nil {
		exitErr("snapshot", err)
	}

	fmt.Printf("%s: %d frames on %d sheets (%dx%d frames of %dx%dpx)\n",
		args[0], data.TotalFrames, data.TotalSheets(),
		data.ImgXLen, data.ImgYLen, data.ImgXSize, data.ImgYSize)

	if snapshotFrame >= 0 {
		if snapshotFrame >= data.TotalFrames {
			exitErr("snapshot", fmt.Errorf("frame %d out of range (total %d)", snapshotFrame, data.TotalFrames))
		}
		frame := videoshot.FrameAt(data, snapshotFrame)
		b, _ := json.MarshalIndent(frame, "", "  ")
		fmt.Println(string(b))
		fmt.Printf("at %s: %s\n",
			videoshot.FormatTimestamp(frame.Timestamp),
			videoshot.BuildVideoURL(args[0], frame.Timestamp, 0))
	}

	if snapshotWarm {
		loader := videoshot.NewSheetLoader(data, a.images, a.cfg.Videoshot.InitialSheetLimit, a.logger)
		loaded := loader.LoadInitial(cmd.Context())
		fmt.Printf("warmed %d sheets\n", len(loaded))
	}
}
