package videoshot

import (
	"context"
	"log/slog"

	"github.com/biliview/biliview/internal/imagecache"
)

const (
	// DefaultSheetBatchLimit caps how many sheets one load pass requests.
	DefaultSheetBatchLimit = 3
	// initialSheets is the small fixed warm-up batch on first load.
	initialSheets = 2
)

// ImageFetcher resolves a sheet URL to locally cached bytes.
type ImageFetcher interface {
	CachedImage(ctx context.Context, url string) *imagecache.BlobHandle
}

// SheetLoader fetches sprite sheets on demand as the visible frame window
// advances. Sheets already loaded are never requested again.
type SheetLoader struct {
	data       *Data
	images     ImageFetcher
	batchLimit int
	logger     *slog.Logger
}

// NewSheetLoader creates a lazy loader over fetched snapshot data.
func NewSheetLoader(data *Data, images ImageFetcher, batchLimit int, logger *slog.Logger) *SheetLoader {
	if batchLimit <= 0 {
		batchLimit = DefaultSheetBatchLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetLoader{
		data:       data,
		images:     images,
		batchLimit: batchLimit,
		logger:     logger,
	}
}

// NeededSheets returns the sheets covering the visible frame range
// [startFrame, endFrame] that have not been loaded yet, capped at the batch
// limit.
func (l *SheetLoader) NeededSheets(startFrame, endFrame int) []int {
	if l.data.TotalFrames == 0 || startFrame > endFrame {
		return nil
	}
	if endFrame >= l.data.TotalFrames {
		endFrame = l.data.TotalFrames - 1
	}
	if startFrame < 0 {
		startFrame = 0
	}

	first := SheetIndexForFrame(l.data, startFrame)
	last := SheetIndexForFrame(l.data, endFrame)

	var needed []int
	for sheet := first; sheet <= last && len(needed) < l.batchLimit; sheet++ {
		if !l.data.SheetLoaded(sheet) {
			needed = append(needed, sheet)
		}
	}
	return needed
}

// LoadInitial fetches the warm-up batch from the start of the video and
// returns the sheets that were loaded.
func (l *SheetLoader) LoadInitial(ctx context.Context) []int {
	count := initialSheets
	if count > l.batchLimit {
		count = l.batchLimit
	}
	if count > l.data.TotalSheets() {
		count = l.data.TotalSheets()
	}
	if count == 0 {
		return nil
	}
	_, end := SheetFrameRange(l.data, count-1)
	return l.LoadVisible(ctx, 0, end-1)
}

// LoadVisible fetches whatever NeededSheets reports for the visible range
// and marks each successfully fetched sheet loaded. Returns the sheets that
// were loaded this pass.
func (l *SheetLoader) LoadVisible(ctx context.Context, startFrame, endFrame int) []int {
	var loaded []int
	for _, sheet := range l.NeededSheets(startFrame, endFrame) {
		url := l.data.Images[sheet]
		if h := l.images.CachedImage(ctx, url); h == nil {
			// Failed sheets stay unloaded and get retried on the next
			// pass over the same window.
			l.logger.Warn("sheet fetch failed", "sheet", sheet, "url", url)
			continue
		}
		l.data.MarkSheetLoaded(sheet)
		loaded = append(loaded, sheet)
	}
	return loaded
}
