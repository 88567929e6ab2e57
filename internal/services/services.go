// package services defines interface Catalog for searching a destination music library over HTTP
//
// Navidrome (native API)
package services

import (
	"context"

	"github.com/desertthunder/trackmatch/internal/models"
)

// Catalog is a destination library searchable by free-text query.
//
// Implementations return at most limit candidates. Any failure is reported as an error;
// callers in the matcher treat it as "no candidates".
type Catalog interface {
	Search(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error)
}
