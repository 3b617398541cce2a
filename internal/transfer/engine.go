package transfer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"downie/internal/fileutil"
	"downie/internal/logging"
	"downie/internal/services"
)

const (
	component         = "transfer"
	partSuffix        = ".part"
	lockSuffix        = ".lock"
	lockRetryInterval = 100 * time.Millisecond
	copyBufferSize    = 64 << 10
)

// Options configures an Engine.
type Options struct {
	MaxConnections  int
	SegmentMinBytes int64
	UserAgent       string
	TLSConfig       *tls.Config // nil uses the system roots
	Logger          *slog.Logger
}

// Job describes one file transfer. Origin is the page the media URL was
// extracted from; Username and Password are only sent to that host over https.
type Job struct {
	URL          string
	Origin       string
	Headers      map[string]string
	Dest         string
	ExpectedSize int64
	Proxy        string
	LimitSpeed   int64
	Username     string
	Password     string
	CookiesFile  string
	Progress     func(Progress)
}

// Progress reports bytes on disk for the job. Total is zero when unknown.
type Progress struct {
	Downloaded int64
	Total      int64
}

// Outcome describes a completed transfer.
type Outcome struct {
	Path     string
	Size     int64
	Resumed  bool
	Segments int
}

// Engine performs single-attempt, resumable HTTP transfers.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(opts Options) *Engine {
	if opts.MaxConnections < 1 {
		opts.MaxConnections = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{opts: opts, logger: logging.NewComponentLogger(logger, component)}
}

// PartPath returns the in-progress file for dest.
func PartPath(dest string) string { return dest + partSuffix }

// Fetch downloads job.URL to job.Dest. Bytes already present in the part
// file are kept and the transfer continues from there. Concurrent Fetch calls
// for the same destination are serialized by a lock file.
func (e *Engine) Fetch(ctx context.Context, job Job) (Outcome, error) {
	if strings.TrimSpace(job.URL) == "" || strings.TrimSpace(job.Dest) == "" {
		return Outcome{}, services.Wrap(services.ErrInvalidInput, component, "fetch", "url and destination are required", nil)
	}
	if err := fileutil.EnsureDir(filepath.Dir(job.Dest)); err != nil {
		return Outcome{}, services.Wrap(services.ErrInvalidInput, component, "fetch", "prepare output directory", err)
	}

	lock := flock.New(job.Dest + lockSuffix)
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		return Outcome{}, services.Wrap(services.ErrTransfer, component, "lock", job.Dest, err)
	}
	if !locked {
		return Outcome{}, services.Wrap(services.ErrTransfer, component, "lock", "destination busy: "+job.Dest, nil)
	}
	// The lock file is left on disk so every waiter locks the same inode.
	defer func() {
		if err := lock.Unlock(); err != nil {
			e.logger.Warn("release transfer lock failed", logging.Error(err))
		}
	}()

	client, err := NewHTTPClient(ClientOptions{
		Proxy:          job.Proxy,
		CookiesFile:    job.CookiesFile,
		MaxConnections: e.opts.MaxConnections,
		TLSConfig:      e.opts.TLSConfig,
	})
	if err != nil {
		return Outcome{}, err
	}

	run := &run{
		engine:  e,
		job:     job,
		client:  client,
		limiter: newLimiter(job.LimitSpeed),
	}
	return run.execute(ctx)
}

// run holds per-call state.
type run struct {
	engine  *Engine
	job     Job
	client  *http.Client
	limiter *rate.Limiter

	mu         sync.Mutex
	downloaded int64
	total      int64
}

func (r *run) execute(ctx context.Context) (Outcome, error) {
	part := PartPath(r.job.Dest)

	if r.worthSegmenting() {
		if existing, _ := fileutil.Size(part); existing == 0 {
			size, ranged, err := r.probe(ctx)
			if err != nil {
				return Outcome{}, err
			}
			if segments := r.segmentCount(size, ranged); segments > 1 {
				if err := r.fetchSegmented(ctx, size, segments); err != nil {
					return Outcome{}, err
				}
				return r.finish(part, false, segments)
			}
		}
	}

	resumed, err := r.fetchSingle(ctx, part)
	if err != nil {
		return Outcome{}, err
	}
	return r.finish(part, resumed, 1)
}

func (r *run) finish(part string, resumed bool, segments int) (Outcome, error) {
	if err := os.Rename(part, r.job.Dest); err != nil {
		return Outcome{}, services.Wrap(services.ErrTransfer, component, "finalize", "rename part file", err)
	}
	size, err := fileutil.Size(r.job.Dest)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrTransfer, component, "finalize", "stat output", err)
	}
	r.engine.logger.Debug("transfer complete",
		logging.String("path", r.job.Dest),
		logging.Int64("bytes", size),
		logging.Bool("resumed", resumed),
		logging.Int("segments", segments),
	)
	return Outcome{Path: r.job.Dest, Size: size, Resumed: resumed, Segments: segments}, nil
}

// worthSegmenting skips the probe when the known size is too small to split.
func (r *run) worthSegmenting() bool {
	opts := r.engine.opts
	if opts.MaxConnections < 2 || opts.SegmentMinBytes <= 0 {
		return false
	}
	return r.job.ExpectedSize <= 0 || r.job.ExpectedSize >= 2*opts.SegmentMinBytes
}

func (r *run) segmentCount(size int64, ranged bool) int {
	if !ranged || size <= 0 {
		return 1
	}
	n := size / r.engine.opts.SegmentMinBytes
	if n < 2 {
		return 1
	}
	return int(min(n, int64(r.engine.opts.MaxConnections)))
}

// probe asks for the first byte to learn the total size and whether the
// server honours ranges.
func (r *run) probe(ctx context.Context) (int64, bool, error) {
	req, err := r.newRequest(ctx, "bytes=0-0")
	if err != nil {
		return 0, false, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, false, r.requestError(ctx, "probe", err)
	}
	defer drain(resp.Body)

	if err := CheckStatus(resp, "probe"); err != nil {
		return 0, false, err
	}
	if resp.StatusCode != http.StatusPartialContent {
		return resp.ContentLength, false, nil
	}
	total := totalFromContentRange(resp.Header.Get("Content-Range"))
	return total, total > 0, nil
}

func (r *run) fetchSingle(ctx context.Context, part string) (bool, error) {
	offset, err := fileutil.Size(part)
	if err != nil {
		return false, services.Wrap(services.ErrTransfer, component, "resume", "stat part file", err)
	}
	if r.job.ExpectedSize > 0 {
		switch {
		case offset == r.job.ExpectedSize:
			r.setTotal(offset)
			r.advance(offset)
			return true, nil
		case offset > r.job.ExpectedSize:
			offset = 0
		}
	}

	rangeHeader := ""
	if offset > 0 {
		rangeHeader = fmt.Sprintf("bytes=%d-", offset)
	}
	req, err := r.newRequest(ctx, rangeHeader)
	if err != nil {
		return false, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false, r.requestError(ctx, "download", err)
	}
	defer drain(resp.Body)

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		_ = os.Truncate(part, 0)
		return false, services.Wrap(services.ErrTransfer, component, "resume", "server rejected resume offset; restarting", nil)
	}
	if err := CheckStatus(resp, "download"); err != nil {
		return false, err
	}

	flags := os.O_CREATE | os.O_WRONLY
	resumed := offset > 0 && resp.StatusCode == http.StatusPartialContent
	if resumed {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
		offset = 0
	}

	expected := int64(-1)
	if resp.ContentLength >= 0 {
		expected = offset + resp.ContentLength
	} else if r.job.ExpectedSize > 0 {
		expected = r.job.ExpectedSize
	}
	r.setTotal(expected)
	r.advance(offset)

	file, err := os.OpenFile(part, flags, 0o644)
	if err != nil {
		return false, services.Wrap(services.ErrTransfer, component, "download", "open part file", err)
	}
	written, copyErr := r.copy(ctx, file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		return false, r.requestError(ctx, "download", copyErr)
	}
	if closeErr != nil {
		return false, services.Wrap(services.ErrTransfer, component, "download", "close part file", closeErr)
	}
	if expected > 0 && offset+written != expected {
		return false, services.Wrap(services.ErrTransfer, component, "download",
			fmt.Sprintf("short read: have %d of %d bytes", offset+written, expected), nil)
	}
	return resumed, nil
}

func (r *run) fetchSegmented(ctx context.Context, size int64, segments int) error {
	r.setTotal(size)
	chunk := size / int64(segments)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.engine.opts.MaxConnections)
	paths := make([]string, segments)
	for i := range segments {
		start := int64(i) * chunk
		end := start + chunk - 1
		if i == segments-1 {
			end = size - 1
		}
		paths[i] = fmt.Sprintf("%s%s.%d", r.job.Dest, partSuffix, i)
		g.Go(func() error {
			return r.fetchRange(gctx, paths[i], start, end)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	part := PartPath(r.job.Dest)
	out, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return services.Wrap(services.ErrTransfer, component, "assemble", "open part file", err)
	}
	for _, path := range paths {
		if _, err := fileutil.AppendFile(out, path); err != nil {
			out.Close()
			return services.Wrap(services.ErrTransfer, component, "assemble", "append segment", err)
		}
	}
	if err := out.Close(); err != nil {
		return services.Wrap(services.ErrTransfer, component, "assemble", "close part file", err)
	}
	for _, path := range paths {
		_ = os.Remove(path)
	}
	return nil
}

// fetchRange fills path with bytes [start, end], resuming whatever an earlier
// attempt left behind.
func (r *run) fetchRange(ctx context.Context, path string, start, end int64) error {
	want := end - start + 1
	have, err := fileutil.Size(path)
	if err != nil {
		return services.Wrap(services.ErrTransfer, component, "segment", "stat segment", err)
	}
	if have > want {
		have = 0
		_ = os.Truncate(path, 0)
	}
	r.advance(have)
	if have == want {
		return nil
	}

	req, err := r.newRequest(ctx, fmt.Sprintf("bytes=%d-%d", start+have, end))
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return r.requestError(ctx, "segment", err)
	}
	defer drain(resp.Body)
	if err := CheckStatus(resp, "segment"); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusPartialContent {
		return services.Wrap(services.ErrTransfer, component, "segment", "server ignored range request", nil)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return services.Wrap(services.ErrTransfer, component, "segment", "open segment", err)
	}
	written, copyErr := r.copy(ctx, file, io.LimitReader(resp.Body, want-have))
	closeErr := file.Close()
	if copyErr != nil {
		return r.requestError(ctx, "segment", copyErr)
	}
	if closeErr != nil {
		return services.Wrap(services.ErrTransfer, component, "segment", "close segment", closeErr)
	}
	if have+written != want {
		return services.Wrap(services.ErrTransfer, component, "segment",
			fmt.Sprintf("short read: have %d of %d bytes", have+written, want), nil)
	}
	return nil
}

func (r *run) newRequest(ctx context.Context, rangeHeader string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.job.URL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidInput, component, "request", "build request", err)
	}
	for key, value := range r.job.Headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("User-Agent") == "" && r.engine.opts.UserAgent != "" {
		req.Header.Set("User-Agent", r.engine.opts.UserAgent)
	}
	if r.job.Username != "" && sameSecureHost(r.job.URL, r.job.Origin) {
		req.SetBasicAuth(r.job.Username, r.job.Password)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	return req, nil
}

// sameSecureHost reports whether target is an https URL on the same host as
// origin. Media is often served from a CDN that must not see account
// credentials.
func sameSecureHost(target, origin string) bool {
	t, err := url.Parse(target)
	if err != nil || !strings.EqualFold(t.Scheme, "https") {
		return false
	}
	o, err := url.Parse(origin)
	if err != nil || o.Hostname() == "" {
		return false
	}
	return strings.EqualFold(t.Hostname(), o.Hostname())
}

func (r *run) copy(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	reader := newLimitedReader(ctx, src, r.limiter)
	buf := make([]byte, copyBufferSize)
	var written int64
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			r.advance(int64(n))
		}
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

func (r *run) setTotal(total int64) {
	r.mu.Lock()
	r.total = max(total, 0)
	r.mu.Unlock()
}

// advance records progress and invokes the callback with the lock held, so
// the callback never runs concurrently with itself.
func (r *run) advance(n int64) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downloaded += n
	if r.job.Progress != nil {
		r.job.Progress(Progress{Downloaded: r.downloaded, Total: r.total})
	}
}

func (r *run) requestError(ctx context.Context, operation string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	return services.Wrap(services.ErrTransfer, component, operation, "request failed", err)
}

// CheckStatus maps a non-2xx response onto the error taxonomy: 401 and 403
// are authentication failures, anything else is a retryable transfer error.
func CheckStatus(resp *http.Response, operation string) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrAuthentication, component, operation, resp.Status, nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return services.Wrap(services.ErrTransfer, component, operation, "unexpected status "+resp.Status, nil)
	}
	return nil
}

// totalFromContentRange parses "bytes 0-0/12345". It returns 0 when the total
// is unknown.
func totalFromContentRange(header string) int64 {
	idx := strings.LastIndexByte(header, '/')
	if idx < 0 {
		return 0
	}
	total, err := strconv.ParseInt(strings.TrimSpace(header[idx+1:]), 10, 64)
	if err != nil || total < 0 {
		return 0
	}
	return total
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
