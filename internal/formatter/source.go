package formatter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/shared"
)

// ReadSourceFile loads a source playlist from a .json or .csv file.
//
// CSV files carry no playlist metadata, so the file name (without extension) becomes the
// playlist id and name, and the file's modification time becomes the version marker.
func ReadSourceFile(path string) (*models.SourcePlaylist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source playlist: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ReadSourceJSON(f)
	case ".csv":
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat source playlist: %w", err)
		}
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		pl, err := ReadSourceCSV(f, base, base)
		if err != nil {
			return nil, err
		}
		pl.VersionMarker = strconv.FormatInt(info.ModTime().UnixNano(), 10)
		return pl, nil
	default:
		return nil, fmt.Errorf("%w: unsupported source file %q (want .json or .csv)", shared.ErrInvalidArgument, path)
	}
}

// ReadSourceJSON decodes a source playlist and validates that it and every track carry an id.
func ReadSourceJSON(r io.Reader) (*models.SourcePlaylist, error) {
	var pl models.SourcePlaylist
	if err := json.NewDecoder(r).Decode(&pl); err != nil {
		return nil, fmt.Errorf("%w: failed to decode source playlist: %v", shared.ErrInvalidInput, err)
	}
	if err := shared.NewValidator().Validate(pl); err != nil {
		return nil, err
	}
	return &pl, nil
}

// ReadSourceCSV reads tracks from CSV with a header row.
//
// Recognized columns (case-insensitive): id, title, artist or artists (";" separated), album,
// duration_ms, duration (seconds or m:ss), isrc. Rows without an id are rejected.
func ReadSourceCSV(r io.Reader, id, name string) (*models.SourcePlaylist, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty CSV", shared.ErrInvalidInput)
		}
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", shared.ErrInvalidInput, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["id"]; !ok {
		return nil, fmt.Errorf("%w: CSV is missing an id column", shared.ErrInvalidInput)
	}

	field := func(rec []string, names ...string) string {
		for _, n := range names {
			if i, ok := cols[n]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
		}
		return ""
	}

	pl := &models.SourcePlaylist{ID: id, Name: name}
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", shared.ErrInvalidInput, line, err)
		}

		track := models.SourceTrack{
			ID:    field(rec, "id"),
			Title: field(rec, "title", "name"),
			Album: field(rec, "album"),
			ISRC:  field(rec, "isrc"),
		}
		if track.ID == "" {
			return nil, fmt.Errorf("%w: line %d: missing id", shared.ErrInvalidInput, line)
		}
		for a := range strings.SplitSeq(field(rec, "artists", "artist"), ";") {
			if a = strings.TrimSpace(a); a != "" {
				track.Artists = append(track.Artists, a)
			}
		}

		if ms := field(rec, "duration_ms", "durationms"); ms != "" {
			track.DurationMS, err = strconv.Atoi(ms)
		} else if d := field(rec, "duration"); d != "" {
			track.DurationMS, err = parseDuration(d)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad duration: %v", shared.ErrInvalidInput, line, err)
		}

		pl.Tracks = append(pl.Tracks, track)
	}
	return pl, nil
}

// parseDuration accepts whole seconds or m:ss and returns milliseconds.
func parseDuration(s string) (int, error) {
	if m, sec, ok := strings.Cut(s, ":"); ok {
		mins, err := strconv.Atoi(m)
		if err != nil {
			return 0, err
		}
		secs, err := strconv.Atoi(sec)
		if err != nil {
			return 0, err
		}
		return (mins*60 + secs) * 1000, nil
	}
	secs, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return secs * 1000, nil
}
