// Package formatter renders search results, download history and playback values as
// plain text, CSV, Markdown and JSON.
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/mdx/internal/models"
)

// SearchToCSV converts search results to CSV with columns: Hash, Title, Artist, Album, Duration
func SearchToCSV(tracks []models.Track) ([]byte, error) {
	rows := make([][]string, 0, len(tracks))
	for _, track := range tracks {
		rows = append(rows, []string{
			track.Hash,
			track.Title,
			track.Artist,
			track.Album,
			strconv.Itoa(track.Duration),
		})
	}
	return writeCSV([]string{"Hash", "Title", "Artist", "Album", "Duration"}, rows)
}

// HistoryToCSV converts download records to CSV with columns: ID, Hash, Title, Artist, Album, Path, Size, Downloaded
func HistoryToCSV(records []*models.DownloadRecord) ([]byte, error) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.ID,
			r.Hash,
			r.Title,
			r.Artist,
			r.Album,
			r.Path,
			strconv.FormatInt(r.Size, 10),
			r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return writeCSV([]string{"ID", "Hash", "Title", "Artist", "Album", "Path", "Size", "Downloaded"}, rows)
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, record := range rows {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// SearchToText renders one page of results as a numbered list continuing from earlier pages.
func SearchToText(page *models.SearchPage) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Results for %q (page %d", page.Keyword, page.Page)
	if page.Total > 0 {
		fmt.Fprintf(&buf, ", %d total", page.Total)
	}
	buf.WriteString(")\n\n")

	if len(page.Tracks) == 0 {
		buf.WriteString("No tracks found.\n")
		return buf.Bytes()
	}

	offset := max(page.Page-1, 0) * page.PageSize
	for i, track := range page.Tracks {
		fmt.Fprintf(&buf, "%3d. %s [%s]\n     %s\n", offset+i+1, track.Label(), FormatDuration(track.Duration), track.Hash)
	}

	if page.HasMore() {
		fmt.Fprintf(&buf, "\nMore results: --page %d\n", page.Page+1)
	}

	return buf.Bytes()
}

// SearchToMarkdown renders one page of results as a Markdown table.
func SearchToMarkdown(page *models.SearchPage) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", page.Keyword)
	buf.WriteString("| # | Title | Artist | Album | Duration | Hash |\n")
	buf.WriteString("|---|---|---|---|---|---|\n")

	offset := max(page.Page-1, 0) * page.PageSize
	for i, track := range page.Tracks {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s | `%s` |\n",
			offset+i+1,
			escapeCell(track.Title),
			escapeCell(track.Artist),
			escapeCell(track.Album),
			FormatDuration(track.Duration),
			track.Hash,
		)
	}

	return buf.Bytes()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// HistoryToText renders download records, newest first as given.
func HistoryToText(records []*models.DownloadRecord) []byte {
	var buf bytes.Buffer

	if len(records) == 0 {
		buf.WriteString("No downloads yet.\n")
		return buf.Bytes()
	}

	for _, r := range records {
		label := r.Title
		if r.Artist != "" {
			label = r.Artist + " - " + r.Title
		}
		fmt.Fprintf(&buf, "%s  %s (%s)\n    %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			label,
			FormatBytes(r.Size),
			r.Path,
		)
	}

	return buf.Bytes()
}

// ToJSON renders v as indented JSON with a trailing newline.
func ToJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// FormatDuration renders whole seconds as m:ss, or h:mm:ss from one hour up.
// Unknown (zero or negative) durations render as "--:--".
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "--:--"
	}
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatPosition renders a playback position in fractional seconds as m:ss.
func FormatPosition(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	if total == 0 {
		return "0:00"
	}
	return FormatDuration(total)
}

// FormatSpeed renders a transfer speed in MB/s.
func FormatSpeed(mbps float64) string {
	if mbps <= 0 || math.IsNaN(mbps) {
		return "-- MB/s"
	}
	return fmt.Sprintf("%.2f MB/s", mbps)
}

// FormatETA renders an estimated time remaining. Zero means unknown unless the transfer is complete.
func FormatETA(seconds float64, progress int) string {
	if progress >= 100 {
		return "done"
	}
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "unknown"
	}
	if seconds < 1 {
		return "<1s"
	}
	return (time.Duration(math.Ceil(seconds)) * time.Second).String()
}

// FormatBytes renders a size with binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", max(n, 0))
	}

	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
