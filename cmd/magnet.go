package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/s0up4200/mircrew/config"
	"github.com/s0up4200/mircrew/qbittorrent"
)

var sendToClient bool

// magnetCmd represents the magnet command
var magnetCmd = &cobra.Command{
	Use:   "magnet <id>",
	Short: "Reveal the magnet link of a topic",
	Long: `Reveal and print the magnet link of a topic. Topics that hide the link
until the post is liked are liked first.

With --send the link is also added to qBittorrent (see the qbittorrent section
of the config file). Torrents already present are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runMagnet,
}

func init() {
	magnetCmd.Flags().BoolVar(&sendToClient, "send", false, "add the magnet link to qBittorrent")
}

func runMagnet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	magnet, err := client.GetMagnetLink(ctx, args[0])
	if err != nil {
		return describeError(err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), magnet)

	if !sendToClient {
		return nil
	}

	// Check if qBittorrent is configured
	if !cfg.QBittorrent.Enabled {
		return fmt.Errorf("qBittorrent is disabled. Please set qbittorrent.enabled and qbittorrent.url in config")
	}

	qbit, err := qbittorrent.NewClient(ctx, cfg.QBittorrent.URL, cfg.QBittorrent.Username, cfg.QBittorrent.Password, logger,
		qbittorrentOptions(cfg.QBittorrent, cfg.MirCrew.Timeout)...)
	if err != nil {
		return err
	}

	added, err := qbit.AddMagnet(ctx, magnet, addOptions(cfg.QBittorrent))
	if err != nil {
		return fmt.Errorf("failed to send magnet to qBittorrent: %w", err)
	}

	if added {
		fmt.Fprintln(cmd.ErrOrStderr(), "✓ Added to qBittorrent")
	} else {
		fmt.Fprintln(cmd.ErrOrStderr(), "Already in qBittorrent, skipped")
	}

	return nil
}

func qbittorrentOptions(qc config.QBittorrentConfig, timeout time.Duration) []qbittorrent.Option {
	opts := []qbittorrent.Option{qbittorrent.WithTimeout(timeout)}
	if qc.InsecureSkipVerify {
		logger.Warn().Str("url", qc.URL).Msg("TLS certificate verification disabled for qBittorrent")
		opts = append(opts, qbittorrent.WithInsecureSkipVerify())
	}
	return opts
}

func addOptions(qc config.QBittorrentConfig) qbittorrent.AddOptions {
	return qbittorrent.AddOptions{
		Category: qc.Category,
		SavePath: qc.SavePath,
		Paused:   qc.Paused,
	}
}
