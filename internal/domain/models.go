package domain

import (
	"context"
	"time"
)

// TypeTrack is the only result type the sampler asks the provider for
const TypeTrack = "track"

// Image is an artwork descriptor as returned by the provider
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Square reports whether the image has equal sides
func (i Image) Square() bool {
	return i.Height == i.Width
}

type Album struct {
	Name        string  `json:"name"`
	ReleaseDate string  `json:"release_date"`
	Images      []Image `json:"images"`
}

// Track is the clean catalog item handed around by the sampler
type Track struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	Album       Album    `json:"album"`
	Popularity  int      `json:"popularity"`
	PreviewURL  string   `json:"preview_url,omitempty"`
	ExternalURL string   `json:"external_url,omitempty"`
	Query       string   `json:"query,omitempty"`
	// Shape names the query form that found the track
	Shape       string   `json:"shape,omitempty"`
}

// FirstImage returns the leading artwork, if any
func (t Track) FirstImage() (Image, bool) {
	if len(t.Album.Images) == 0 {
		return Image{}, false
	}
	return t.Album.Images[0], true
}

// SearchRequest is one bounded page request against the provider
type SearchRequest struct {
	Query  string
	Type   string
	Limit  int
	Offset int
}

// SearchPage holds the total hit count for a query plus the requested slice
type SearchPage struct {
	Total int
	Items []Track
}

// Provider defines the interface for catalog search
type Provider interface {
	Search(ctx context.Context, req SearchRequest) (SearchPage, error)
}

// Record is the line written to the data file for every collected track
type Record struct {
	RunID       string    `json:"run_id"`
	CollectedAt time.Time `json:"collected_at"`
	Track       Track     `json:"track"`
}
