// Package extract resolves a page URL into platform metadata, downloadable
// formats, and subtitle tracks.
//
// Extractor is the seam the downloaders depend on; YtDLP is the production
// adapter and shells out to yt-dlp in JSON mode. Failures are classified so
// callers can tell an unsupported site (services.ErrUnsupportedPlatform) apart
// from login walls (services.ErrAuthentication), transient network trouble
// (services.ErrTransfer), and everything else (services.ErrExtraction).
package extract
