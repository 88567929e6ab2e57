package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/trackmatch/internal/cache"
	"github.com/desertthunder/trackmatch/internal/formatter"
	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/repositories"
	"github.com/desertthunder/trackmatch/internal/shared"
	tu "github.com/desertthunder/trackmatch/internal/testing"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v3"
)

const songsJSON = `[
	{"id": "nd-1", "title": "Song A", "artist": "Artist", "album": "Album", "duration": 200.2},
	{"id": "nd-2", "title": "Song B", "artist": "Artist", "album": "Album", "duration": 181}
]`

// newCatalogServer serves the same two songs for every search and counts requests.
func newCatalogServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/api/song" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(songsJSON))
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func testConfig(t *testing.T, catalogURL string) *shared.Config {
	t.Helper()
	cfg := shared.DefaultConfig()
	cfg.Catalog.URL = catalogURL
	cfg.Catalog.RateLimit = 0
	cfg.Cache.Driver = "memory"
	cfg.Cache.LockPath = filepath.Join(t.TempDir(), "trackmatch.lock")
	return cfg
}

func writePlaylist(t *testing.T, dir, id string) string {
	t.Helper()
	pl := models.SourcePlaylist{
		ID:            id,
		Name:          "Playlist " + id,
		VersionMarker: "v1",
		Tracks: []models.SourceTrack{
			{ID: "t1", Title: "Song A", Artists: []string{"Artist"}, Album: "Album", DurationMS: 200000},
			{ID: "t2", Title: "Song B", Artists: []string{"Artist"}, Album: "Album", DurationMS: 181000},
		},
	}
	data, err := json.Marshal(pl)
	if err != nil {
		t.Fatalf("failed to marshal playlist: %v", err)
	}
	path := filepath.Join(dir, id+".json")
	tu.MustWriteFile(t, path, string(data))
	return path
}

func runCommand(r *Runner, args ...string) error {
	app := &cli.Command{Name: "trackmatch", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"trackmatch"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			catalog := &tu.MockCatalog{}
			store := cache.NewMemoryStore()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Catalog:    catalog,
				Store:      store,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.catalogClient() != catalog {
				t.Error("expected catalog to be used as given")
			}
			if got, _ := runner.openStore(context.Background()); got != store {
				t.Error("expected store to be used as given")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "match", "lookup", "search", "cache", "runs"} {
			if !names[want] {
				t.Errorf("expected %q command to be registered", want)
			}
		}
	})

	t.Run("matchOptions", func(t *testing.T) {
		cfg := shared.MatchingConfig{EnableISRC: false, EnableStrict: true, EnableFuzzy: true, FuzzyThreshold: 0.7, StrictResults: 5}
		opts := matchOptions(cfg)

		if opts.EnableIdentifier {
			t.Error("expected identifier stage to be disabled")
		}
		if !opts.EnableStrict || !opts.EnableFuzzy {
			t.Error("expected strict and fuzzy stages to be enabled")
		}
		if opts.FuzzyThreshold != 0.7 {
			t.Errorf("expected threshold 0.7, got %v", opts.FuzzyThreshold)
		}
		if opts.StrictResults != 5 {
			t.Errorf("expected 5 strict results, got %d", opts.StrictResults)
		}
		if opts.FuzzyResults != 50 {
			t.Errorf("expected default fuzzy results, got %d", opts.FuzzyResults)
		}
		if got := len(opts.Strategies()); got != 2 {
			t.Errorf("expected 2 strategies, got %d", got)
		}
	})

	t.Run("openStore", func(t *testing.T) {
		ctx := context.Background()

		t.Run("memory driver", func(t *testing.T) {
			cfg := shared.DefaultConfig()
			cfg.Cache.Driver = "memory"
			runner := NewRunner(RunnerOpts{Config: cfg})

			store, err := runner.openStore(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if _, ok := store.(*cache.MemoryStore); !ok {
				t.Errorf("expected memory store, got %T", store)
			}
			if runner.runs != nil {
				t.Error("expected no run history for memory driver")
			}
		})

		t.Run("sqlite driver enables run history", func(t *testing.T) {
			cfg := shared.DefaultConfig()
			cfg.Cache.Driver = "sqlite"
			cfg.Cache.Path = ":memory:"
			runner := NewRunner(RunnerOpts{Config: cfg})
			defer runner.Close()

			store, err := runner.openStore(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if _, ok := store.(*repositories.SnapshotRepository); !ok {
				t.Errorf("expected snapshot repository, got %T", store)
			}
			if runner.runs == nil {
				t.Error("expected run history for sqlite driver")
			}
		})

		t.Run("badger driver", func(t *testing.T) {
			cfg := shared.DefaultConfig()
			cfg.Cache.Driver = "badger"
			cfg.Cache.Path = filepath.Join(t.TempDir(), "badger")
			runner := NewRunner(RunnerOpts{Config: cfg})

			store, err := runner.openStore(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if _, ok := store.(*repositories.BadgerStore); !ok {
				t.Errorf("expected badger store, got %T", store)
			}
			if err := runner.Close(); err != nil {
				t.Errorf("expected clean close, got %v", err)
			}
		})

		t.Run("unknown driver", func(t *testing.T) {
			cfg := shared.DefaultConfig()
			cfg.Cache.Driver = "etcd"
			runner := NewRunner(RunnerOpts{Config: cfg})

			if _, err := runner.openStore(ctx); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})

	t.Run("lockCache", func(t *testing.T) {
		t.Run("acquires and releases", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: testConfig(t, "http://localhost")})

			unlock, err := runner.lockCache()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			unlock()

			unlock, err = runner.lockCache()
			if err != nil {
				t.Fatalf("expected lock to be free after release, got %v", err)
			}
			unlock()
		})

		t.Run("held lock fails fast", func(t *testing.T) {
			cfg := testConfig(t, "http://localhost")
			other := flock.New(cfg.Cache.LockPath)
			if ok, err := other.TryLock(); !ok || err != nil {
				t.Fatalf("failed to take lock: %v", err)
			}
			defer other.Unlock()

			runner := NewRunner(RunnerOpts{Config: cfg})
			if _, err := runner.lockCache(); !errors.Is(err, shared.ErrLocked) {
				t.Errorf("expected ErrLocked, got %v", err)
			}
		})

		t.Run("empty path disables locking", func(t *testing.T) {
			cfg := testConfig(t, "http://localhost")
			cfg.Cache.LockPath = ""
			runner := NewRunner(RunnerOpts{Config: cfg})

			unlock, err := runner.lockCache()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			unlock()
		})
	})
}

func TestCommands(t *testing.T) {
	t.Run("match reuses the cached snapshot", func(t *testing.T) {
		srv, requests := newCatalogServer(t)
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: testConfig(t, srv.URL), Output: output})
		path := writePlaylist(t, t.TempDir(), "pl-1")

		if err := runCommand(runner, "match", "--json", path); err != nil {
			t.Fatalf("first match failed: %v", err)
		}

		var first formatter.RunReport
		if err := json.Unmarshal(output.Bytes(), &first); err != nil {
			t.Fatalf("failed to decode report: %v\n%s", err, output.String())
		}
		if first.Statistics.Matched != 2 {
			t.Errorf("expected 2 matched, got %+v", first.Statistics)
		}
		if first.Matches[0].Matched == nil || first.Matches[0].Matched.ID != "nd-1" {
			t.Errorf("expected t1 to match nd-1, got %+v", first.Matches[0].Matched)
		}
		if first.UpToDate {
			t.Error("expected first run not to be up to date")
		}

		queried := requests.Load()
		if queried == 0 {
			t.Fatal("expected catalog requests on first run")
		}

		output.Reset()
		if err := runCommand(runner, "match", "--json", path); err != nil {
			t.Fatalf("second match failed: %v", err)
		}

		var second formatter.RunReport
		if err := json.Unmarshal(output.Bytes(), &second); err != nil {
			t.Fatalf("failed to decode report: %v", err)
		}
		if !second.UpToDate {
			t.Error("expected second run to be up to date")
		}
		if second.Statistics.Matched != 2 {
			t.Errorf("expected cached matches to be reported, got %+v", second.Statistics)
		}
		if got := requests.Load(); got != queried {
			t.Errorf("expected no new catalog requests, got %d more", got-queried)
		}
	})

	t.Run("match prints a summary", func(t *testing.T) {
		srv, _ := newCatalogServer(t)
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: testConfig(t, srv.URL), Output: output})
		path := writePlaylist(t, t.TempDir(), "pl-1")
		report := filepath.Join(t.TempDir(), "out", "report.csv")

		if err := runCommand(runner, "match", "--format", "csv", "--output", report, path); err != nil {
			t.Fatalf("match failed: %v", err)
		}

		result := output.String()
		for _, want := range []string{"Reconciled: Playlist pl-1", "Matched", "snapshot saved"} {
			if !strings.Contains(result, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, result)
			}
		}

		tu.AssertFileExists(t, report)
		if csv := tu.MustReadFile(t, report); !strings.Contains(csv, "nd-1") {
			t.Errorf("expected report to name the matched song, got:\n%s", csv)
		}
	})

	t.Run("match without files", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: testConfig(t, "http://localhost"), Output: &bytes.Buffer{}})
		if err := runCommand(runner, "match"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("match several files writes reports", func(t *testing.T) {
		srv, _ := newCatalogServer(t)
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: testConfig(t, srv.URL), Output: output})
		dir := t.TempDir()
		reports := filepath.Join(t.TempDir(), "reports")

		err := runCommand(runner, "match", "--report-dir", reports, "--format", "markdown",
			writePlaylist(t, dir, "pl-1"), writePlaylist(t, dir, "pl-2"))
		if err != nil {
			t.Fatalf("bulk match failed: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(reports, "reconcile_manifest.json"))
		tu.AssertFileExists(t, filepath.Join(reports, "pl-1_report.md"))
		tu.AssertFileExists(t, filepath.Join(reports, "pl-2_report.md"))
		if !strings.Contains(output.String(), "Succeeded: 2") {
			t.Errorf("expected bulk summary, got:\n%s", output.String())
		}
	})

	t.Run("search", func(t *testing.T) {
		srv, _ := newCatalogServer(t)
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: testConfig(t, srv.URL), Output: output})

		if err := runCommand(runner, "search", "--json", "song"); err != nil {
			t.Fatalf("search failed: %v", err)
		}

		var results []models.CandidateTrack
		if err := json.Unmarshal(output.Bytes(), &results); err != nil {
			t.Fatalf("failed to decode results: %v", err)
		}
		if len(results) != 2 || results[0].DurationSec != 200 {
			t.Errorf("unexpected results: %+v", results)
		}
	})

	t.Run("lookup", func(t *testing.T) {
		srv, _ := newCatalogServer(t)
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: testConfig(t, srv.URL), Output: output})

		if err := runCommand(runner, "lookup", "--json", "-t", "Song B", "-a", "Artist", "--duration", "181"); err != nil {
			t.Fatalf("lookup failed: %v", err)
		}

		var result models.MatchResult
		if err := json.Unmarshal(output.Bytes(), &result); err != nil {
			t.Fatalf("failed to decode result: %v", err)
		}
		if result.Status != models.StatusMatched || result.Matched.ID != "nd-2" {
			t.Errorf("expected nd-2 matched, got %s %+v", result.Status, result.Matched)
		}
	})

	t.Run("cache list and clear", func(t *testing.T) {
		srv, _ := newCatalogServer(t)
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: testConfig(t, srv.URL), Output: output})
		path := writePlaylist(t, t.TempDir(), "pl-1")

		if err := runCommand(runner, "match", "--json", path); err != nil {
			t.Fatalf("match failed: %v", err)
		}

		output.Reset()
		if err := runCommand(runner, "cache", "list", "--json"); err != nil {
			t.Fatalf("cache list failed: %v", err)
		}
		var snapshots []models.Snapshot
		if err := json.Unmarshal(output.Bytes(), &snapshots); err != nil {
			t.Fatalf("failed to decode snapshots: %v", err)
		}
		if len(snapshots) != 1 || snapshots[0].ContainerID != "pl-1" || snapshots[0].TrackCount != 2 {
			t.Errorf("unexpected snapshots: %+v", snapshots)
		}

		output.Reset()
		if err := runCommand(runner, "cache", "diff", "--json", path); err != nil {
			t.Fatalf("cache diff failed: %v", err)
		}
		if !strings.Contains(output.String(), `"upToDate": true`) {
			t.Errorf("expected up to date diff, got %s", output.String())
		}

		if err := runCommand(runner, "cache", "clear", "pl-1"); err != nil {
			t.Fatalf("cache clear failed: %v", err)
		}

		output.Reset()
		if err := runCommand(runner, "cache", "list"); err != nil {
			t.Fatalf("cache list failed: %v", err)
		}
		if !strings.Contains(output.String(), "No cached snapshots") {
			t.Errorf("expected empty cache, got %s", output.String())
		}
	})

	t.Run("cache show missing snapshot", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: testConfig(t, "http://localhost"), Output: &bytes.Buffer{}})
		if err := runCommand(runner, "cache", "show", "nope"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("cache resolve rejects a bad index", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: testConfig(t, "http://localhost"), Output: &bytes.Buffer{}})
		if err := runCommand(runner, "cache", "resolve", "pl-1", "t1", "first"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("runs", func(t *testing.T) {
		t.Run("records history with sqlite", func(t *testing.T) {
			srv, _ := newCatalogServer(t)
			cfg := testConfig(t, srv.URL)
			cfg.Cache.Driver = "sqlite"
			cfg.Cache.Path = ":memory:"
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Config: cfg, Output: output})
			defer runner.Close()

			if err := runCommand(runner, "match", "--json", writePlaylist(t, t.TempDir(), "pl-1")); err != nil {
				t.Fatalf("match failed: %v", err)
			}

			output.Reset()
			if err := runCommand(runner, "runs", "--json"); err != nil {
				t.Fatalf("runs failed: %v", err)
			}

			var runs []models.RunRecord
			if err := json.Unmarshal(output.Bytes(), &runs); err != nil {
				t.Fatalf("failed to decode runs: %v", err)
			}
			if len(runs) != 1 {
				t.Fatalf("expected 1 run, got %d", len(runs))
			}
			if runs[0].Status != models.RunCompleted || runs[0].ContainerID != "pl-1" || runs[0].Statistics.Matched != 2 {
				t.Errorf("unexpected run: %+v", runs[0])
			}
		})

		t.Run("unsupported without sqlite", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: testConfig(t, "http://localhost"), Output: &bytes.Buffer{}})
			if err := runCommand(runner, "runs"); !errors.Is(err, shared.ErrNotImplemented) {
				t.Errorf("expected ErrNotImplemented, got %v", err)
			}
		})
	})

	t.Run("setup creates config", func(t *testing.T) {
		dir := t.TempDir()
		cfg := testConfig(t, "http://localhost")
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: cfg, ConfigPath: filepath.Join(dir, "config.toml"), Output: output})
		runner.store = cache.NewMemoryStore()

		if err := runCommand(runner, "setup"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "config.toml"))
		if !strings.Contains(output.String(), "Config written") {
			t.Errorf("expected confirmation, got %s", output.String())
		}
	})
}
