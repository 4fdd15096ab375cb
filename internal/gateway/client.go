// Package gateway retrieves content from the local bee node's HTTP API.
package gateway

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/darkobas2/util-beeget/internal/bee"
	"github.com/darkobas2/util-beeget/internal/logctx"
	"github.com/darkobas2/util-beeget/internal/progress"
	"github.com/darkobas2/util-beeget/internal/telemetry"
	"github.com/dustin/go-humanize"
)

// progressInterval is how many bytes go by between progress log lines.
const progressInterval = 16 * 1024 * 1024

// filenamePattern extracts the quoted filename token from a
// Content-Disposition header, e.g. `attachment; filename="report.dat"`.
var filenamePattern = regexp.MustCompile(`filename="(.*?)"`)

// Client issues retrieval requests against the node's local gateway.
type Client struct {
	baseURL   string // e.g. http://localhost:1633
	outputDir string // empty: current directory
	client    *http.Client
	tel       *telemetry.Telemetry
}

// NewClient builds a gateway client writing retrieved files into outputDir
// (the current directory when empty). tel may be nil.
func NewClient(baseURL, outputDir string, tel *telemetry.Telemetry) *Client {
	return &Client{
		baseURL:   baseURL,
		outputDir: outputDir,
		// No client timeout: retrieval streams arbitrarily large content.
		client: &http.Client{Transport: telemetry.NewTransport(nil)},
		tel:    tel,
	}
}

// Retrieve streams the content behind hash to a local file and returns the
// path that was written. The filename comes from the response's
// Content-Disposition header when present, otherwise it embeds the hash.
func (c *Client) Retrieve(ctx context.Context, hash string) (string, error) {
	logger := logctx.LoggerFromContext(ctx)

	url := c.baseURL + "/bzz/" + hash

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &bee.RetrievalError{Hash: hash, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &bee.RetrievalError{Hash: hash, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &bee.RetrievalError{Hash: hash, StatusCode: resp.StatusCode}
	}

	filename := filenameFromHeader(resp.Header.Get("Content-Disposition"))
	if filename == "" {
		filename = "downloaded_file_" + hash + ".dat"
	}

	target := filename
	if c.outputDir != "" {
		target = filepath.Join(c.outputDir, filename)
	}

	out, err := os.Create(target)
	if err != nil {
		return "", &bee.FilesystemError{Op: "create", Path: target, Err: err}
	}
	defer out.Close()

	logger.InfoContext(ctx, "retrieving content", "swarm_hash", hash, "target", target)

	pr := progress.NewReader(resp.Body, resp.ContentLength, progressInterval, func(read, total int64) {
		if total > 0 {
			logger.DebugContext(ctx, "retrieval progress",
				"downloaded", humanize.Bytes(uint64(read)),
				"total", humanize.Bytes(uint64(total)),
			)
		} else {
			logger.DebugContext(ctx, "retrieval progress", "downloaded", humanize.Bytes(uint64(read)))
		}
	})

	if _, err := io.Copy(out, pr); err != nil {
		return "", &bee.RetrievalError{Hash: hash, Err: err}
	}

	c.tel.RecordBytes("retrieve", pr.BytesRead())

	logger.InfoContext(ctx, "content retrieved", "target", target, "bytes", pr.BytesRead())

	return target, nil
}

func filenameFromHeader(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}

	match := filenamePattern.FindStringSubmatch(contentDisposition)
	if match == nil {
		return ""
	}

	return match[1]
}
