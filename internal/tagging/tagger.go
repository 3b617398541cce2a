package tagging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"

	"downie/internal/config"
	"downie/internal/logging"
	"downie/internal/services"
	"downie/internal/transfer"
)

const (
	component       = "tagging"
	maxArtworkBytes = 10 << 20
)

// Metadata is the information written into the tag.
type Metadata struct {
	Title        string
	Artist       string
	Album        string
	SourceURL    string
	ThumbnailURL string
}

// Option configures a Tagger.
type Option func(*Tagger)

// WithHTTPClient replaces the client used to fetch thumbnails.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Tagger) {
		if client != nil {
			t.client = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tagger) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tagger writes ID3v2 tags to MP3 files.
type Tagger struct {
	embed     bool
	maxPx     int
	proxy     string
	userAgent string
	client    *http.Client
	logger    *slog.Logger
}

// New builds a Tagger from the tagging and network configuration.
func New(cfg *config.Config, opts ...Option) *Tagger {
	t := &Tagger{
		embed:     cfg.Tagging.EmbedThumbnail,
		maxPx:     cfg.Tagging.ArtworkMaxPx,
		proxy:     cfg.Network.Proxy,
		userAgent: cfg.Network.UserAgent,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.NewComponentLogger(t.logger, component)
	return t
}

// Supported reports whether path is a file Tag can write.
func Supported(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp3")
}

// Tag writes title, artist, album, and source comment frames to path and,
// when enabled, embeds the thumbnail as front cover art. Artwork failures
// are logged and do not fail the call.
func (t *Tagger) Tag(ctx context.Context, path string, meta Metadata) error {
	if !Supported(path) {
		return services.Wrap(services.ErrInvalidInput, component, "tag", fmt.Sprintf("%s is not an mp3 file", path), nil)
	}
	logger := logging.WithContext(ctx, t.logger)

	var artwork []byte
	if t.embed && meta.ThumbnailURL != "" {
		var err error
		artwork, err = t.fetchArtwork(ctx, meta.ThumbnailURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.WarnWithContext(logger, "cover art skipped", "artwork_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "audio tagged without cover art"),
			)
		}
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return services.Wrap(services.ErrProcessing, component, "open", path, err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if meta.Title != "" {
		tag.SetTitle(meta.Title)
	}
	if meta.Artist != "" {
		tag.SetArtist(meta.Artist)
	}
	if meta.Album != "" {
		tag.SetAlbum(meta.Album)
	}
	if meta.SourceURL != "" {
		tag.DeleteFrames(tag.CommonID("Comments"))
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "source",
			Text:        meta.SourceURL,
		})
	}
	if artwork != nil {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     artwork,
		})
	}

	if err := tag.Save(); err != nil {
		return services.Wrap(services.ErrProcessing, component, "save", path, err)
	}
	logger.Info("audio tagged",
		logging.String("path", path),
		logging.Bool("artwork", artwork != nil),
	)
	return nil
}

func (t *Tagger) fetchArtwork(ctx context.Context, url string) ([]byte, error) {
	client := t.client
	if client == nil {
		var err error
		client, err = transfer.NewHTTPClient(transfer.ClientOptions{Proxy: t.proxy})
		if err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidInput, component, "artwork", "build request", err)
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransfer, component, "artwork", "request failed", err)
	}
	defer resp.Body.Close()
	if err := transfer.CheckStatus(resp, "artwork"); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtworkBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransfer, component, "artwork", "read body", err)
	}
	return PrepareArtwork(data, t.maxPx)
}
