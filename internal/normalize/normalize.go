// Package normalize canonicalizes track metadata so that equal recordings compare equal.
//
// Every [Kind] runs the same pipeline:
//  1. Fold diacritics (NFD, drop combining marks)
//  2. Lowercase
//  3. Kind-specific stripping (suffixes, edition tags, collaborators, soundtrack words)
//  4. Replace punctuation with spaces and collapse whitespace
//
// The pipeline is repeated until it reaches a fixed point, so Normalize(k, Normalize(k, s))
// always equals Normalize(k, s).
//
// Examples:
//
//	Title("Yesterday - Remastered 2009")        → "yesterday"
//	Title("Bohemian Rhapsody (Live at Wembley)") → "bohemian rhapsody"
//	Artist("Beyoncé feat. JAY-Z")                → "beyonce"
//	Album("Abbey Road (Super Deluxe Edition)")   → "abbey road"
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind selects the field-specific rules applied on top of the shared pipeline.
type Kind int

const (
	KindPlain Kind = iota
	KindTitle
	KindArtist
	KindAlbum
)

func (k Kind) String() string {
	switch k {
	case KindTitle:
		return "title"
	case KindArtist:
		return "artist"
	case KindAlbum:
		return "album"
	default:
		return "plain"
	}
}

const maxPasses = 8

var (
	audioExtensionRe = regexp.MustCompile(`\.(?:mp3|flac|wav|ogg|m4a|aac|wma|opus|alac|aiff?)$`)
	suffixDashRe     = regexp.MustCompile(`\s[-–—~/]`)
	yearRemasterRe   = regexp.MustCompile(`\b\d{4}\s+remaster(?:ed)?(?:\s+version)?\b`)
	liveSuffixRe     = regexp.MustCompile(`(?:^|\s)[\(\[]?live[\)\]]?$`)
	djPrefixRe       = regexp.MustCompile(`^dj\s+`)
	collaboratorRe   = regexp.MustCompile(
		`\s*[\(\[]?\s*\b(?:feat|ft|featuring|with|vs|versus|presents|presenting|pres|prod|produced by)\b\.?|\s(?:x|and|\+)\s|\s*&`,
	)
	soundtrackRe = regexp.MustCompile(
		`\b(?:original|soundtrack|sound track|ost|score|complete|vol|volume|disc|disk|cd)\b`,
	)
	// Longest tags first so "deluxe edition" wins over "deluxe".
	editionTagRe = regexp.MustCompile(`\b(?:` + strings.Join([]string{
		`super deluxe edition`,
		`bonus tracks edition`,
		`bonus track version`,
		`anniversary edition`,
		`remastered version`,
		`expanded edition`,
		`special edition`,
		`deluxe edition`,
		`deluxe version`,
		`super deluxe`,
		`remastered`,
		`remaster`,
		`deluxe`,
		`stereo`,
		`mono`,
	}, "|") + `)\b`)
	apostropheRe  = regexp.MustCompile(`['’‘` + "`" + `]`)
	punctuationRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize returns the canonical form of s for the given kind.
//
// An input that is empty after normalization yields "".
func Normalize(kind Kind, s string) string {
	out := s
	for range maxPasses {
		next := pass(kind, out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

// String normalizes without field-specific rules.
func String(s string) string { return Normalize(KindPlain, s) }

// Title normalizes a track title.
func Title(s string) string { return Normalize(KindTitle, s) }

// Artist normalizes an artist credit down to its primary artist.
func Artist(s string) string { return Normalize(KindArtist, s) }

// Album normalizes an album name.
func Album(s string) string { return Normalize(KindAlbum, s) }

func pass(kind Kind, s string) string {
	s = strings.ToLower(FoldDiacritics(s))

	switch kind {
	case KindTitle:
		s = audioExtensionRe.ReplaceAllString(strings.TrimSpace(s), "")
		s = strings.ReplaceAll(s, "_", " ")
		s = strings.TrimSpace(stripTitleSuffix(s))
		s = strings.TrimSpace(keepNonEmpty(s, stripEditionTags(s)))
		s = keepNonEmpty(s, liveSuffixRe.ReplaceAllString(s, ""))
	case KindArtist:
		s = stripCollaborators(s)
		s = keepNonEmpty(s, djPrefixRe.ReplaceAllString(strings.TrimSpace(s), ""))
	case KindAlbum:
		s = stripEditionTags(s)
		s = soundtrackRe.ReplaceAllString(s, " ")
	}

	return collapse(s)
}

// FoldDiacritics decomposes s and drops combining marks, so "Beyoncé" becomes "Beyonce".
func FoldDiacritics(s string) string {
	out, _, err := transform.String(foldMarks, s)
	if err != nil {
		return s
	}
	return out
}

// stripTitleSuffix cuts at the first bracket or spaced dash that follows some title text.
func stripTitleSuffix(s string) string {
	cut := -1
	if i := strings.IndexAny(s, "(["); i > 0 && strings.TrimSpace(s[:i]) != "" {
		cut = i
	}
	if loc := suffixDashRe.FindStringIndex(s); loc != nil && strings.TrimSpace(s[:loc[0]]) != "" {
		if cut < 0 || loc[0] < cut {
			cut = loc[0]
		}
	}
	if cut < 0 {
		return s
	}
	return s[:cut]
}

func stripEditionTags(s string) string {
	s = yearRemasterRe.ReplaceAllString(s, " ")
	return editionTagRe.ReplaceAllString(s, " ")
}

// stripCollaborators truncates at the first collaboration marker that follows a name.
func stripCollaborators(s string) string {
	for _, loc := range collaboratorRe.FindAllStringIndex(s, -1) {
		if strings.TrimSpace(s[:loc[0]]) != "" {
			return s[:loc[0]]
		}
	}
	return s
}

func collapse(s string) string {
	s = apostropheRe.ReplaceAllString(s, "")
	s = punctuationRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// keepNonEmpty returns stripped unless stripping removed every letter and digit.
func keepNonEmpty(original, stripped string) string {
	if collapse(stripped) == "" {
		return original
	}
	return stripped
}
