package qbittorrent

import (
	"context"
	"fmt"
	"strconv"

	"github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"

	"github.com/s0up4200/mircrew/mircrew"
)

// webAPI is the subset of the qBittorrent Web API used by Client
type webAPI interface {
	LoginCtx(ctx context.Context) error
	GetTorrentsCtx(ctx context.Context, o qbittorrent.TorrentFilterOptions) ([]qbittorrent.Torrent, error)
	AddTorrentFromUrlCtx(ctx context.Context, url string, options map[string]string) error
}

// AddOptions controls how a magnet link is added
type AddOptions struct {
	Category string
	SavePath string
	Paused   bool
}

// Client wraps the qBittorrent API client
type Client struct {
	client webAPI
	logger zerolog.Logger
}

// NewClient creates a new qBittorrent client and logs in
func NewClient(ctx context.Context, url, username, password string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	// Create client with credentials
	client := qbittorrent.NewClient(qbittorrent.Config{
		Host:          url,
		Username:      username,
		Password:      password,
		TLSSkipVerify: options.insecureSkipVerify,
		Timeout:       int(options.timeout.Seconds()),
	})

	ctx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	return newClient(ctx, client, logger)
}

func newClient(ctx context.Context, client webAPI, logger zerolog.Logger) (*Client, error) {
	// Test connection by logging in
	if err := client.LoginCtx(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	logger.Debug().Msg("Successfully connected to qBittorrent")

	return &Client{
		client: client,
		logger: logger,
	}, nil
}

// AddMagnet adds a magnet link unless a torrent with the same info hash is
// already present. It reports whether the torrent was added.
func (c *Client) AddMagnet(ctx context.Context, magnet string, opts AddOptions) (bool, error) {
	link, err := mircrew.ParseMagnet(magnet)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidMagnet, err)
	}

	hash := link.InfoHash

	existing, err := c.client.GetTorrentsCtx(ctx, qbittorrent.TorrentFilterOptions{
		Hashes: []string{hash},
	})
	if err != nil {
		return false, fmt.Errorf("failed to get torrents: %w", err)
	}
	if len(existing) > 0 {
		c.logger.Info().
			Str("hash", hash).
			Str("name", existing[0].Name).
			Msg("Torrent already present in qBittorrent, skipping")
		return false, nil
	}

	if err := c.client.AddTorrentFromUrlCtx(ctx, link.URI, opts.prepare()); err != nil {
		return false, fmt.Errorf("failed to add torrent: %w", err)
	}

	c.logger.Info().
		Str("hash", hash).
		Str("category", opts.Category).
		Msg("Added magnet link to qBittorrent")

	return true, nil
}

// prepare converts the options into Web API form fields
func (o AddOptions) prepare() map[string]string {
	fields := map[string]string{}
	if o.Category != "" {
		fields["category"] = o.Category
	}
	if o.SavePath != "" {
		fields["savepath"] = o.SavePath
		fields["autoTMM"] = "false"
	}
	if o.Paused {
		// qBittorrent 5 renamed paused to stopped
		fields["paused"] = strconv.FormatBool(o.Paused)
		fields["stopped"] = strconv.FormatBool(o.Paused)
	}
	return fields
}
