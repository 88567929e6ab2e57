// Package services implements the destination [Catalog] the matcher searches.
//
// # Catalog Interface
//
// A catalog answers free-text queries with at most limit [models.CandidateTrack] values.
// The matcher only ever calls Search, so any library that can be queried this way can be plugged in.
//
// # Navidrome Implementation
//
// [NavidromeService] calls the native REST API (GET /api/song). ISRCs are read from the
// top-level isrc array, falling back to the raw tag map, and durations are rounded to whole seconds.
//
// # Authentication
//
// [NewHTTPClient] wraps the configured token in an [oauth2.TokenSource]. Navidrome reads its
// JWT from X-ND-Authorization, so [TokenTransport] sets a configurable header; the standard
// Authorization header uses [oauth2.Transport] directly.
//
// # Rate Limiting
//
// [RateLimitedCatalog] decorates any catalog with a shared [rate.Limiter].
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrCatalogUnavailable] : transport failure (connection refused, timeout)
//   - [shared.ErrNotAuthenticated] : 401/403 or no usable token
//   - [shared.ErrRateLimited] : 429 or limiter wait aborted
//   - [shared.ErrCatalogRequest] : any other non-2xx or an undecodable body
package services
