package main

import (
	"fmt"

	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/shared"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable draws rows under headers with rounded borders. Short rows are padded.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// statisticsTable renders outcome counts followed by per-strategy counts.
func statisticsTable(stats models.Statistics) string {
	rows := [][]string{
		{"Total", fmt.Sprint(stats.Total), ""},
		{"Matched", fmt.Sprint(stats.Matched), percentOf(stats.Matched, stats.Total)},
		{"Ambiguous", fmt.Sprint(stats.Ambiguous), percentOf(stats.Ambiguous, stats.Total)},
		{"Unmatched", fmt.Sprint(stats.Unmatched), percentOf(stats.Unmatched, stats.Total)},
	}
	for _, s := range models.Strategies {
		if n := stats.ByStrategy[s]; n > 0 {
			rows = append(rows, []string{"via " + string(s), fmt.Sprint(n), percentOf(n, stats.Total)})
		}
	}
	return renderTable([]string{"Outcome", "Tracks", "Share"}, rows, []columnAlignment{alignLeft, alignRight, alignRight})
}

// matchesTable lists results, optionally only those that did not match outright.
func matchesTable(results []models.MatchResult, onlyUnresolved bool) string {
	rows := make([][]string, 0, len(results))
	for i, m := range results {
		if onlyUnresolved && m.Status == models.StatusMatched {
			continue
		}
		candidate := ""
		if m.Matched != nil {
			candidate = fmt.Sprintf("%s - %s", m.Matched.Artist, m.Matched.Title)
		}
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			m.Source.ArtistLine(),
			m.Source.Title,
			string(m.Status),
			string(m.Strategy),
			fmt.Sprintf("%.3f", m.Score),
			candidate,
		})
	}
	return renderTable(
		[]string{"#", "Artist", "Title", "Status", "Strategy", "Score", "Candidate"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

// candidatesTable lists catalog tracks with an optional score column.
func candidatesTable(candidates []models.CandidateTrack, scores []float64) string {
	headers := []string{"#", "ID", "Title", "Artist", "Album", "Duration"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight}
	if scores != nil {
		headers = append(headers, "Score")
		aligns = append(aligns, alignRight)
	}

	rows := make([][]string, 0, len(candidates))
	for i, c := range candidates {
		row := []string{
			fmt.Sprint(i),
			c.ID,
			c.Title,
			c.Artist,
			c.Album,
			shared.FormatDuration(c.DurationSec * 1000),
		}
		if i < len(scores) {
			row = append(row, fmt.Sprintf("%.3f", scores[i]))
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, aligns)
}

func percentOf(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)/float64(total)*100)
}
