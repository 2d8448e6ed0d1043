package history

import (
	"fmt"
	"time"

	"github.com/biliview/biliview/internal/domain"
)

// GroupedRecentItems buckets the non-pinned records by day. Bucket order
// follows the recency of the first item seen per bucket, which matches the
// newest-first item order.
func (s *Service) GroupedRecentItems() []domain.HistoryGroup {
	var groups []domain.HistoryGroup
	index := make(map[string]int)

	now := s.now()
	for _, item := range s.RecentItems() {
		label := dateGroupLabel(time.UnixMilli(item.Timestamp), now)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, domain.HistoryGroup{Label: label})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}

// dateGroupLabel renders the day bucket for a record. Labels are the
// user-visible strings the search UI shows: 今天 / 昨天 / 2天前, then
// calendar dates, with the year included once it differs.
func dateGroupLabel(ts, now time.Time) string {
	ts = ts.In(now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	diffDays := int(today.Sub(day).Hours() / 24)

	switch diffDays {
	case 0:
		return "今天"
	case 1:
		return "昨天"
	case 2:
		return "2天前"
	}
	if ts.Year() == now.Year() {
		return fmt.Sprintf("%d月%d日", int(ts.Month()), ts.Day())
	}
	return fmt.Sprintf("%d年%d月%d日", ts.Year(), int(ts.Month()), ts.Day())
}

// FormatFullTime renders a record timestamp for tooltips.
func FormatFullTime(tsMS int64) string {
	return time.UnixMilli(tsMS).Format("2006-01-02 15:04:05")
}
