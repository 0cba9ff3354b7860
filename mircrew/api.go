package mircrew

import (
	"context"
)

// API defines the operations exposed to the tool layer
type API interface {
	// SearchMovie searches topic titles; a blank title yields no results
	SearchMovie(ctx context.Context, title string) ([]SearchResult, error)

	// GetMovieDetails retrieves the metadata of one topic
	GetMovieDetails(ctx context.Context, movieID string) (*MovieDetails, error)

	// GetMagnetLink likes the topic if needed and returns its magnet link
	GetMagnetLink(ctx context.Context, movieID string) (string, error)
}

var _ API = (*Client)(nil)
