// Package transfer streams remote files to local paths.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/open-edge-platform/asset-sync/internal/assetsync/errdefs"
	"github.com/open-edge-platform/asset-sync/internal/utils/logger"
	"github.com/open-edge-platform/asset-sync/internal/utils/network"
	"github.com/open-edge-platform/asset-sync/internal/version"
)

const (
	// BufferSize is the chunk size used to copy a response body to disk.
	BufferSize = 8 * 1024
	// DefaultProgressInterval is how many bytes pass between progress reports.
	DefaultProgressInterval int64 = 1 << 20
	// DefaultTimeout bounds a single fetch from request to last byte.
	DefaultTimeout = 5 * time.Minute
	// MaxDocumentSize bounds bodies read into memory by Get.
	MaxDocumentSize int64 = 16 << 20
)

// Options configures a Client. Zero values select the defaults above.
type Options struct {
	Timeout          time.Duration
	UserAgent        string
	ProgressInterval int64
	Reporter         Reporter
	HTTPClient       *http.Client
}

// Client fetches remote files over HTTP(S).
type Client struct {
	opts   Options
	client *http.Client
}

// NewClient returns a client with opts applied over the defaults.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = version.GetUserAgent()
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if opts.Reporter == nil {
		opts.Reporter = NopReporter{}
	}
	client := opts.HTTPClient
	if client == nil {
		client = network.NewSecureHTTPClient()
	}
	return &Client{opts: opts, client: client}
}

// Fetch streams remoteURL into destPath and returns the number of bytes
// written. On failure destPath may hold a partial file; the caller decides
// what to do with it.
func (c *Client) Fetch(ctx context.Context, remoteURL, destPath string) (int64, error) {
	log := logger.Logger()

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	resp, err := c.do(ctx, remoteURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return 0, &errdefs.IOError{Op: "create", Path: destPath, Err: err}
	}

	total := resp.ContentLength
	if total < 0 {
		total = -1
	}
	log.Debugf("streaming %s to %s (%d bytes announced)", remoteURL, destPath, total)

	written, err := c.stream(ctx, out, resp.Body, remoteURL, destPath, total)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = &errdefs.IOError{Op: "close", Path: destPath, Err: cerr}
	}
	if err != nil {
		return written, err
	}

	c.opts.Reporter.Report(Progress{URL: remoteURL, Dest: destPath, BytesSoFar: written, Total: total, Done: true})
	return written, nil
}

func (c *Client) stream(ctx context.Context, out io.Writer, body io.Reader, remoteURL, destPath string, total int64) (int64, error) {
	buf := make([]byte, BufferSize)
	var written int64
	nextReport := c.opts.ProgressInterval

	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return written, &errdefs.IOError{Op: "write", Path: destPath, Err: werr}
			}
			written += int64(n)
			if written >= nextReport {
				c.opts.Reporter.Report(Progress{URL: remoteURL, Dest: destPath, BytesSoFar: written, Total: total})
				nextReport = (written/c.opts.ProgressInterval + 1) * c.opts.ProgressInterval
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, classify(ctx, remoteURL, rerr)
		}
	}
}

// Get fetches a small document, such as a manifest, into memory.
func (c *Client) Get(ctx context.Context, remoteURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	resp, err := c.do(ctx, remoteURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSize+1))
	if err != nil {
		return nil, classify(ctx, remoteURL, err)
	}
	if int64(len(data)) > MaxDocumentSize {
		return nil, &errdefs.TransferError{
			Kind: errdefs.NetworkFailure,
			URL:  remoteURL,
			Err:  fmt.Errorf("document larger than %d bytes", MaxDocumentSize),
		}
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, remoteURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, &errdefs.TransferError{Kind: errdefs.NetworkFailure, URL: remoteURL, Err: err}
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(ctx, remoteURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &errdefs.TransferError{
			Kind:       errdefs.NonSuccessStatus,
			URL:        remoteURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}
	return resp, nil
}

func classify(ctx context.Context, remoteURL string, err error) error {
	kind := errdefs.NetworkFailure
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		kind = errdefs.Timeout
	}
	return &errdefs.TransferError{Kind: kind, URL: remoteURL, Err: err}
}
