// Package videoshot maps video positions onto sprite-sheet thumbnails.
//
// Snapshots ship as sprite sheets: each sheet holds ImgXLen x ImgYLen frames
// of ImgXSize x ImgYSize pixels, laid out row-major (left to right, top to
// bottom), sheet by sheet. A video longer than one sheet spans several.
package videoshot

import (
	"fmt"
	"math"
	"sync"
)

// Data describes one video's sprite-sheet set. Sheets are fetched lazily;
// LoadedSheets tracks which ones already have their bytes.
type Data struct {
	ImgXLen  int // frames per row, typically 10
	ImgYLen  int // rows per sheet, typically 10
	ImgXSize int // frame width in pixels, typically 160
	ImgYSize int // frame height in pixels, typically 90

	Images     []string  // sheet URLs, in order
	Timestamps []float64 // per-frame video timestamps in seconds

	FramesPerSheet int // ImgXLen * ImgYLen
	TotalFrames    int // len(Timestamps)

	mu           sync.Mutex
	loadedSheets map[int]struct{}
}

// TotalSheets returns the number of sprite sheets.
func (d *Data) TotalSheets() int { return len(d.Images) }

// MarkSheetLoaded records that a sheet's bytes have been fetched.
func (d *Data) MarkSheetLoaded(sheet int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loadedSheets == nil {
		d.loadedSheets = make(map[int]struct{})
	}
	d.loadedSheets[sheet] = struct{}{}
}

// SheetLoaded reports whether a sheet's bytes have been fetched.
func (d *Data) SheetLoaded(sheet int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.loadedSheets[sheet]
	return ok
}

// LoadedSheetCount returns how many sheets have been fetched.
func (d *Data) LoadedSheetCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.loadedSheets)
}

// Frame locates one frame within its sprite sheet.
type Frame struct {
	Index       int     // global frame index
	SheetURL    string  // empty when the index is past the last sheet
	OffsetX     int     // pixel offset of the frame within the sheet
	OffsetY     int
	Width       int
	Height      int
	Timestamp   float64 // video timestamp in seconds, 0 when unknown
	SheetWidth  int
	SheetHeight int
}

// FrameAt computes the location of a frame within its sheet. Total over all
// frameIndex >= 0; callers bound frameIndex < TotalFrames themselves.
func FrameAt(d *Data, frameIndex int) Frame {
	sheetIndex := frameIndex / d.FramesPerSheet
	localIndex := frameIndex % d.FramesPerSheet
	col := localIndex % d.ImgXLen
	row := localIndex / d.ImgXLen

	sheetURL := ""
	if sheetIndex < len(d.Images) {
		sheetURL = d.Images[sheetIndex]
	}
	timestamp := 0.0
	if frameIndex < len(d.Timestamps) {
		timestamp = d.Timestamps[frameIndex]
	}

	return Frame{
		Index:       frameIndex,
		SheetURL:    sheetURL,
		OffsetX:     col * d.ImgXSize,
		OffsetY:     row * d.ImgYSize,
		Width:       d.ImgXSize,
		Height:      d.ImgYSize,
		Timestamp:   timestamp,
		SheetWidth:  d.ImgXLen * d.ImgXSize,
		SheetHeight: d.ImgYLen * d.ImgYSize,
	}
}

// SheetIndexForFrame returns the sheet a frame lives on.
func SheetIndexForFrame(d *Data, frameIndex int) int {
	return frameIndex / d.FramesPerSheet
}

// SheetFrameRange returns the half-open global frame range [start, end)
// covered by a sheet. The last sheet may be partial.
func SheetFrameRange(d *Data, sheetIndex int) (start, end int) {
	start = sheetIndex * d.FramesPerSheet
	end = start + d.FramesPerSheet
	if end > d.TotalFrames {
		end = d.TotalFrames
	}
	return start, end
}

// FormatTimestamp renders seconds as mm:ss, or h:mm:ss from one hour up.
// Fractional seconds floor.
func FormatTimestamp(seconds float64) string {
	total := int(math.Floor(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// BuildVideoURL builds a deep link into a video at a timestamp. The page
// parameter is included only for part 2 and up; the timestamp floors to
// whole seconds.
func BuildVideoURL(bvid string, timestamp float64, page int) string {
	t := int(math.Floor(timestamp))
	if page > 1 {
		return fmt.Sprintf("https://www.bilibili.com/video/%s/?p=%d&t=%d", bvid, page, t)
	}
	return fmt.Sprintf("https://www.bilibili.com/video/%s/?t=%d", bvid, t)
}
