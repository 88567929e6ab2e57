// Navidrome [Catalog] implementation
//
// Talks to the native REST API (/api/song) rather than Subsonic, since it exposes ISRC tags
// and the compilation flag used by the ranker.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/shared"
)

const defaultNavidromeURL string = "http://127.0.0.1:4533"

// NavidromeSong is a song in native API responses.
type NavidromeSong struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	Album       string   `json:"album"`
	AlbumArtist string   `json:"albumArtist,omitempty"`
	Duration    float64  `json:"duration"` // Seconds, fractional
	ISRC        []string `json:"isrc,omitempty"`
	Compilation bool     `json:"compilation,omitempty"`
	Tags        *struct {
		ISRC []string `json:"isrc,omitempty"`
	} `json:"tags,omitempty"`
}

// Candidate converts the song to the engine's candidate type.
//
// ISRCs come from the top-level field, falling back to the raw tag map.
func (s NavidromeSong) Candidate() models.CandidateTrack {
	isrcs := s.ISRC
	if len(isrcs) == 0 && s.Tags != nil {
		isrcs = s.Tags.ISRC
	}
	return models.CandidateTrack{
		ID:          s.ID,
		Title:       s.Title,
		Artist:      s.Artist,
		Album:       s.Album,
		DurationSec: int(s.Duration + 0.5),
		ISRCs:       isrcs,
		Compilation: s.Compilation,
	}
}

// NavidromeService implements [Catalog] against a Navidrome server.
type NavidromeService struct {
	baseURL    string
	httpClient *http.Client
}

// NewNavidromeService creates a new Navidrome catalog client.
//
// The client is expected to carry authentication, see [NewHTTPClient].
func NewNavidromeService(baseURL string, client *http.Client) *NavidromeService {
	if baseURL == "" {
		baseURL = defaultNavidromeURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &NavidromeService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// Name returns the service name.
func (n *NavidromeService) Name() string {
	return "Navidrome"
}

func (n *NavidromeService) doRequest(ctx context.Context, method, endpoint string, result any) error {
	apiURL := n.baseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", shared.ErrCatalogRequest, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: navidrome returned status %d", shared.ErrNotAuthenticated, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: navidrome returned status %d", shared.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var errResp struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("%w: navidrome API error (status %d): %s", shared.ErrCatalogRequest, resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("%w: navidrome API error: status %d", shared.ErrCatalogRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrCatalogRequest, err)
		}
	}
	return nil
}

// Search finds songs whose title matches query.
//
// Calls GET /api/song?title={query}&_start=0&_end={limit}. Navidrome's title filter matches
// against its full-text index, so "artist title" queries work.
func (n *NavidromeService) Search(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("title", query)
	params.Set("_start", "0")
	params.Set("_end", strconv.Itoa(limit))
	params.Set("_sort", "title")
	params.Set("_order", "ASC")

	var songs []NavidromeSong
	if err := n.doRequest(ctx, http.MethodGet, "/api/song?"+params.Encode(), &songs); err != nil {
		return nil, err
	}

	if len(songs) > limit {
		songs = songs[:limit]
	}
	candidates := make([]models.CandidateTrack, 0, len(songs))
	for _, s := range songs {
		candidates = append(candidates, s.Candidate())
	}
	return candidates, nil
}

// Song fetches a single song by id.
//
// Calls GET /api/song/{id}.
func (n *NavidromeService) Song(ctx context.Context, id string) (*models.CandidateTrack, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: song id", shared.ErrMissingArgument)
	}

	var song NavidromeSong
	if err := n.doRequest(ctx, http.MethodGet, "/api/song/"+url.PathEscape(id), &song); err != nil {
		return nil, err
	}
	c := song.Candidate()
	return &c, nil
}
