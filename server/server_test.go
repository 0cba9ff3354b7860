package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/mircrew/mircrew"
)

type fakeAPI struct {
	results []mircrew.SearchResult
	details *mircrew.MovieDetails
	magnet  string
	err     error

	titles []string
	ids    []string
}

func (f *fakeAPI) SearchMovie(_ context.Context, title string) ([]mircrew.SearchResult, error) {
	f.titles = append(f.titles, title)
	return f.results, f.err
}

func (f *fakeAPI) GetMovieDetails(_ context.Context, movieID string) (*mircrew.MovieDetails, error) {
	f.ids = append(f.ids, movieID)
	return f.details, f.err
}

func (f *fakeAPI) GetMagnetLink(_ context.Context, movieID string) (string, error) {
	f.ids = append(f.ids, movieID)
	return f.magnet, f.err
}

func serve(t *testing.T, api mircrew.API, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(api, zerolog.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestSearch(t *testing.T) {
	api := &fakeAPI{results: []mircrew.SearchResult{
		{ID: "12", Title: "Mary Poppins (1964)", URL: "https://forum.example/viewtopic.php?t=12"},
	}}

	rec := serve(t, api, "/api/search?title=Mary+Poppins")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var results []mircrew.SearchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&results))
	assert.Equal(t, api.results, results)
	assert.Equal(t, []string{"Mary Poppins"}, api.titles)
}

func TestSearchEmptyResults(t *testing.T) {
	rec := serve(t, &fakeAPI{results: []mircrew.SearchResult{}}, "/api/search?title=+")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSearchWithoutTitle(t *testing.T) {
	api := &fakeAPI{}
	rec := serve(t, api, "/api/search")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorResponse{Kind: "invalid_request", Message: "title query parameter is required"}, decodeError(t, rec))
	assert.Empty(t, api.titles)
}

func TestDetails(t *testing.T) {
	year := "2023"
	api := &fakeAPI{details: &mircrew.MovieDetails{ID: "7", Title: "Wish", URL: "https://forum.example/viewtopic.php?t=7", Year: &year, RawContent: "Anno: 2023"}}

	rec := serve(t, api, "/api/movies/7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"7","title":"Wish","url":"https://forum.example/viewtopic.php?t=7","year":"2023","raw_content":"Anno: 2023"}`, rec.Body.String())
	assert.Equal(t, []string{"7"}, api.ids)
}

func TestMagnet(t *testing.T) {
	api := &fakeAPI{magnet: "magnet:?xt=urn:btih:abc"}

	rec := serve(t, api, "/api/movies/7/magnet")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"magnet":"magnet:?xt=urn:btih:abc"}`, rec.Body.String())
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		target     string
		wantStatus int
		wantKind   string
	}{
		{"authentication", &mircrew.Error{Kind: mircrew.KindAuthentication, Message: "login rejected"}, "/api/search?title=x", http.StatusUnauthorized, "authentication"},
		{"network", &mircrew.Error{Kind: mircrew.KindNetwork, Message: "request timed out"}, "/api/search?title=x", http.StatusBadGateway, "network"},
		{"parsing", &mircrew.Error{Kind: mircrew.KindParsing, Message: "invalid HTML"}, "/api/movies/1", http.StatusBadGateway, "parsing"},
		{"movie not found", &mircrew.Error{Kind: mircrew.KindMovieNotFound, Message: "movie 1 not found"}, "/api/movies/1", http.StatusNotFound, "movie_not_found"},
		{"magnet not found", &mircrew.Error{Kind: mircrew.KindMagnetNotFound, Message: "no magnet link available"}, "/api/movies/1/magnet", http.StatusNotFound, "magnet_not_found"},
		{"wrapped", fmt.Errorf("outer: %w", &mircrew.Error{Kind: mircrew.KindMovieNotFound, Message: "gone"}), "/api/movies/1", http.StatusNotFound, "movie_not_found"},
		{"foreign", errors.New("boom"), "/api/movies/1/magnet", http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, &fakeAPI{err: tt.err}, tt.target)
			require.Equal(t, tt.wantStatus, rec.Code)

			body := decodeError(t, rec)
			assert.Equal(t, tt.wantKind, body.Kind)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestRouting(t *testing.T) {
	rec := serve(t, &fakeAPI{}, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(t, &fakeAPI{}, "/api/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Kind)

	for _, target := range []string{"/api/search?title=x", "/api/movies/12", "/api/movies/12/magnet", "/healthz"} {
		t.Run("POST "+target, func(t *testing.T) {
			api := &fakeAPI{}
			rec := httptest.NewRecorder()
			NewRouter(api, zerolog.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, "invalid_request", decodeError(t, rec).Kind)
			assert.Empty(t, api.titles)
			assert.Empty(t, api.ids)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := New("127.0.0.1:0", &fakeAPI{}, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
