package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/mircrew/config"
	"github.com/s0up4200/mircrew/mircrew"
	"github.com/s0up4200/mircrew/qbittorrent"
)

func TestSetupLoggerWritesFile(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	path := filepath.Join(t.TempDir(), "mircrew.log")
	log := setupLogger(config.LoggingConfig{
		Level:   "warn",
		Format:  "json",
		File:    path,
		MaxSize: 1,
	})

	log.Info().Msg("dropped")
	log.Warn().Str("movie_id", "7").Msg("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"movie_id":"7"`)
	assert.NotContains(t, string(data), "dropped")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestDescribeError(t *testing.T) {
	auth := &mircrew.Error{Kind: mircrew.KindAuthentication, Message: "login rejected"}
	err := describeError(auth)
	assert.ErrorIs(t, err, mircrew.ErrAuthentication)
	assert.Contains(t, err.Error(), mircrew.EnvUsername)

	parsing := &mircrew.Error{Kind: mircrew.KindParsing, Message: "invalid HTML"}
	assert.Contains(t, describeError(parsing).Error(), "layout")

	missing := &mircrew.Error{Kind: mircrew.KindMovieNotFound, Message: "movie 7 not found"}
	assert.ErrorIs(t, describeError(missing), mircrew.ErrMovieNotFound)
	assert.Contains(t, describeError(missing).Error(), "mircrew search")

	magnet := &mircrew.Error{Kind: mircrew.KindMagnetNotFound, Message: "no magnet link available"}
	assert.Contains(t, describeError(magnet).Error(), "mircrew search")

	other := errors.New("boom")
	assert.Same(t, other, describeError(other))
}

func TestQBittorrentSettings(t *testing.T) {
	logger = zerolog.Nop()

	qc := config.QBittorrentConfig{
		URL:      "https://qbit.local",
		Category: "film",
		SavePath: "/data/film",
		Paused:   true,
	}
	assert.Equal(t, qbittorrent.AddOptions{Category: "film", SavePath: "/data/film", Paused: true}, addOptions(qc))
	assert.Len(t, qbittorrentOptions(qc, time.Minute), 1)

	qc.InsecureSkipVerify = true
	assert.Len(t, qbittorrentOptions(qc, time.Minute), 2)
}

func TestVersionSkipsConfiguration(t *testing.T) {
	SetVersion("1.2.3", "2026-10-17")

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"version", "--config", filepath.Join(t.TempDir(), "absent.yaml")})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "mircrew 1.2.3 (built 2026-10-17)\n", out.String())
}
