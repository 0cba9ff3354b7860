// Package mircrew provides a session-authenticated scraping client for the
// MirCrew phpBB forum, which has no public API.
//
// # Architecture
//
//   - Transport: cookie-bearing HTTP client with browser headers and TLS verification
//   - SessionManager: phpBB login exchange and session state
//   - Extractors: ParseSearchResults, ParseMovieDetails and ParseMagnetLink turn HTML into data
//   - Like strategies: an ordered chain that triggers the "thanks" action revealing magnet links
//   - Client: sequences the above into SearchMovie, GetMovieDetails and GetMagnetLink
//
// # Usage
//
//	client, err := mircrew.NewClient(
//		mircrew.Credentials{Username: user, Password: pass},
//		logger,
//		mircrew.WithTimeout(30*time.Second),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := client.SearchMovie(ctx, "Mary Poppins")
//	magnet, err := client.GetMagnetLink(ctx, results[0].ID)
//
// # Error Handling
//
// Every operation returns *Error tagged with a Kind. Match kinds with
// errors.Is against the sentinels or read them with KindOf:
//
//	if errors.Is(err, mircrew.ErrMovieNotFound) {
//		// the topic does not exist
//	}
//
// A magnet link that cannot be revealed is reported as ErrMagnetNotFound and
// also matches ErrParsing.
package mircrew
