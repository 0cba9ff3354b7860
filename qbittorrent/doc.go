// Package qbittorrent hands revealed magnet links to a qBittorrent instance.
//
// This package wraps the autobrr/go-qbittorrent library to provide the one
// operation the mircrew tool needs: adding a magnet link once.
//
// # Features
//
//   - Connection management with authentication
//   - Duplicate detection by info hash (hex or base32)
//   - Category, save path and paused state for new torrents
//   - Context-aware operations for graceful cancellation
//
// # Usage
//
//	client, err := qbittorrent.NewClient(ctx, url, username, password, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	added, err := client.AddMagnet(ctx, magnet, qbittorrent.AddOptions{Category: "film"})
//	if err == nil && !added {
//	    // already in qBittorrent
//	}
package qbittorrent
