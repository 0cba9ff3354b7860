package mircrew

import (
	"encoding/base32"
	"encoding/hex"
	"net/url"
	"strings"
)

// SearchResult is a single topic found by a title search
type SearchResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// MovieDetails holds the metadata scraped from a topic's first post.
// Optional fields are nil when the page does not carry them.
type MovieDetails struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Description *string `json:"description,omitempty"`
	Year        *string `json:"year,omitempty"`
	Genre       *string `json:"genre,omitempty"`
	Quality     *string `json:"quality,omitempty"`
	Size        *string `json:"size,omitempty"`
	PostedBy    *string `json:"posted_by,omitempty"`
	PostedDate  *string `json:"posted_date,omitempty"`
	RawContent  string  `json:"raw_content"`
}

// MagnetLink is a validated magnet URI
type MagnetLink struct {
	URI      string
	InfoHash string
}

const (
	magnetPrefix = "magnet:?"
	btihPrefix   = "urn:btih:"
)

// ParseMagnet validates uri as a BitTorrent magnet link. It must start with
// "magnet:?" and carry an xt=urn:btih:<hash> parameter whose hash is a v1 info
// hash of 40 hex or 32 base32 characters. InfoHash is the lowercase hex form.
func ParseMagnet(uri string) (MagnetLink, error) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, magnetPrefix) {
		return MagnetLink{}, newError(KindParsing, "not a magnet URI")
	}

	// ParseQuery keeps the well-formed pairs even when it reports an error
	query, err := url.ParseQuery(uri[len(magnetPrefix):])
	var hashErr error
	for _, xt := range query["xt"] {
		if len(xt) <= len(btihPrefix) || !strings.EqualFold(xt[:len(btihPrefix)], btihPrefix) {
			continue
		}
		hash, herr := NormalizeInfoHash(xt[len(btihPrefix):])
		if herr != nil {
			hashErr = herr
			continue
		}
		return MagnetLink{URI: uri, InfoHash: hash}, nil
	}
	if hashErr != nil {
		return MagnetLink{}, hashErr
	}
	if err != nil {
		return MagnetLink{}, wrapError(KindParsing, err, "malformed magnet URI")
	}
	return MagnetLink{}, newError(KindParsing, "magnet URI lacks an xt=urn:btih: info hash")
}

// NormalizeInfoHash returns the lowercase hex form of a v1 info hash given as
// 40 hex or 32 base32 characters.
func NormalizeInfoHash(hash string) (string, error) {
	switch len(hash) {
	case 40:
		if _, err := hex.DecodeString(hash); err == nil {
			return strings.ToLower(hash), nil
		}
	case 32:
		if raw, err := base32.StdEncoding.DecodeString(strings.ToUpper(hash)); err == nil {
			return hex.EncodeToString(raw), nil
		}
	}
	return "", newError(KindParsing, "invalid info hash %q", hash)
}

// String returns the magnet URI
func (m MagnetLink) String() string {
	return m.URI
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
