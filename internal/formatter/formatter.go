// package formatter reads source playlists and writes reconciliation reports (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/shared"
)

// RunReport is the printable outcome of one reconciliation pass.
type RunReport struct {
	PlaylistID   string               `json:"playlistId"`
	PlaylistName string               `json:"playlistName"`
	RunID        string               `json:"runId"`
	Matches      []models.MatchResult `json:"matches"`
	Statistics   models.Statistics    `json:"statistics"`
	Diff         models.DiffResult    `json:"diff"`
	UpToDate     bool                 `json:"upToDate"`
	Duration     time.Duration        `json:"durationNs"`
}

// ManifestEntry summarizes one playlist of a bulk run.
type ManifestEntry struct {
	PlaylistID   string             `json:"playlistId"`
	PlaylistName string             `json:"playlistName"`
	Success      bool               `json:"success"`
	Error        string             `json:"error,omitempty"`
	ReportFile   string             `json:"reportFile,omitempty"`
	Statistics   *models.Statistics `json:"statistics,omitempty"`
}

// Manifest summarizes a bulk run.
type Manifest struct {
	GeneratedAt     time.Time       `json:"generatedAt"`
	OutputDirectory string          `json:"outputDirectory"`
	Total           int             `json:"total"`
	Succeeded       int             `json:"succeeded"`
	Failed          int             `json:"failed"`
	Entries         []ManifestEntry `json:"entries"`
}

var reportHeaders = []string{
	"Position", "TrackID", "Title", "Artist", "Album", "Duration",
	"Status", "Strategy", "Score", "CandidateID", "CandidateTitle", "CandidateArtist", "CandidateAlbum",
}

// ReportToCSV converts a report to CSV with one row per source track, in playlist order
func ReportToCSV(report RunReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(reportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, m := range report.Matches {
		record := []string{
			strconv.Itoa(i + 1),
			m.Source.ID,
			m.Source.Title,
			m.Source.ArtistLine(),
			m.Source.Album,
			shared.FormatDuration(m.Source.DurationMS),
			string(m.Status),
			string(m.Strategy),
			strconv.FormatFloat(m.Score, 'f', 3, 64),
			"", "", "", "",
		}
		if m.Matched != nil {
			record[9] = m.Matched.ID
			record[10] = m.Matched.Title
			record[11] = m.Matched.Artist
			record[12] = m.Matched.Album
		}
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

// ReportToMarkdown converts a report to Markdown with a summary and a section per status
func ReportToMarkdown(report RunReport) ([]byte, error) {
	var buf bytes.Buffer
	stats := report.Statistics

	fmt.Fprintf(&buf, "# %s\n\n", reportTitle(report))
	if report.RunID != "" {
		fmt.Fprintf(&buf, "**Run**: `%s`\n", report.RunID)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n", stats.Total)
	fmt.Fprintf(&buf, "**Matched**: %d (%s)\n", stats.Matched, percent(stats.Matched, stats.Total))
	fmt.Fprintf(&buf, "**Ambiguous**: %d\n", stats.Ambiguous)
	fmt.Fprintf(&buf, "**Unmatched**: %d\n\n", stats.Unmatched)

	buf.WriteString("| Strategy | Tracks |\n|---|---|\n")
	for _, s := range models.Strategies {
		fmt.Fprintf(&buf, "| %s | %d |\n", s, stats.ByStrategy[s])
	}
	buf.WriteString("\n")

	sections := []struct {
		title  string
		status models.Status
	}{
		{"Matched", models.StatusMatched},
		{"Ambiguous", models.StatusAmbiguous},
		{"Unmatched", models.StatusUnmatched},
	}
	for _, sec := range sections {
		rows := 0
		for i, m := range report.Matches {
			if m.Status != sec.status {
				continue
			}
			if rows == 0 {
				fmt.Fprintf(&buf, "## %s\n\n", sec.title)
			}
			rows++
			fmt.Fprintf(&buf, "%d. %s - %s [%s]", i+1, m.Source.ArtistLine(), m.Source.Title, shared.FormatDuration(m.Source.DurationMS))
			if m.Matched != nil {
				fmt.Fprintf(&buf, " → %s - %s (%s, %.2f)", m.Matched.Artist, m.Matched.Title, m.Strategy, m.Score)
			}
			buf.WriteString("\n")
		}
		if rows > 0 {
			buf.WriteString("\n")
		}
	}

	return buf.Bytes(), nil
}

// ReportToText converts a report to plain text
func ReportToText(report RunReport) ([]byte, error) {
	var buf bytes.Buffer
	stats := report.Statistics

	fmt.Fprintf(&buf, "Playlist: %s\n", reportTitle(report))
	fmt.Fprintf(&buf, "Matched: %d/%d (ambiguous %d, unmatched %d)\n\n", stats.Matched, stats.Total, stats.Ambiguous, stats.Unmatched)

	for i, m := range report.Matches {
		target := "-"
		if m.Matched != nil {
			target = fmt.Sprintf("%s - %s", m.Matched.Artist, m.Matched.Title)
		}
		fmt.Fprintf(&buf, "%d. [%s] %s - %s => %s\n", i+1, m.Status, m.Source.ArtistLine(), m.Source.Title, target)
	}

	return buf.Bytes(), nil
}

// ReportToJSON converts a report to indented JSON
func ReportToJSON(report RunReport) ([]byte, error) {
	return shared.MarshalJSON(report, true)
}

// Render dispatches to the renderer for format: csv, markdown (md), txt (text), or json (default).
//
// Returns the rendered bytes and the file extension for the format.
func Render(report RunReport, format string) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case "csv":
		data, err := ReportToCSV(report)
		return data, "csv", err
	case "markdown", "md":
		data, err := ReportToMarkdown(report)
		return data, "md", err
	case "txt", "text":
		data, err := ReportToText(report)
		return data, "txt", err
	case "json", "":
		data, err := ReportToJSON(report)
		return data, "json", err
	default:
		return nil, "", fmt.Errorf("%w: unsupported report format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteReport renders a report and writes it to {dir}/{playlistID}_report.{ext}.
func WriteReport(report RunReport, format, dir string) (string, error) {
	data, ext, err := Render(report, format)
	if err != nil {
		return "", err
	}

	name := report.PlaylistID
	if name == "" {
		name = "playlist"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_report.%s", safeFilename(name), ext))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// WriteManifest writes the bulk run manifest as indented JSON.
func WriteManifest(m Manifest, path string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func reportTitle(r RunReport) string {
	if r.PlaylistName != "" {
		return r.PlaylistName
	}
	return r.PlaylistID
}

func percent(n, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.0f%%", float64(n)/float64(total)*100)
}

// safeFilename replaces path separators and other awkward characters with underscores.
func safeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}
