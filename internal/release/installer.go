package release

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"

	"github.com/darkobas2/util-beeget/internal/bee"
	"github.com/darkobas2/util-beeget/internal/logctx"
	"github.com/darkobas2/util-beeget/internal/progress"
	"github.com/darkobas2/util-beeget/internal/telemetry"
	"github.com/dustin/go-humanize"
)

const (
	dirPerm    = 0o755
	binaryPerm = 0o755

	// progressInterval is how many bytes go by between progress log lines.
	progressInterval = 16 * 1024 * 1024
)

// Installer downloads a release asset into a local binary directory.
type Installer struct {
	dir    string // empty: per-OS default
	client *http.Client
	tel    *telemetry.Telemetry
}

// NewInstaller builds an installer. dir overrides the per-OS install
// directory when non-empty. tel may be nil.
func NewInstaller(dir string, tel *telemetry.Telemetry) *Installer {
	return &Installer{
		dir: dir,
		// No client timeout: the asset is tens of megabytes and streams at
		// whatever rate the release host serves it.
		client: &http.Client{Transport: telemetry.NewTransport(nil)},
		tel:    tel,
	}
}

// InstallDir returns the default binary directory for the current OS:
// ~/.local/bin on POSIX systems, %LOCALAPPDATA% on Windows.
func InstallDir() (string, error) {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return dir, nil
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}

		return filepath.Join(home, "AppData", "Local"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, ".local", "bin"), nil
}

// Install streams the asset into the install directory, overwriting any
// previous binary of the same name, and marks it executable off Windows.
// Returns the path of the installed binary.
func (i *Installer) Install(ctx context.Context, asset *bee.Asset) (string, error) {
	logger := logctx.LoggerFromContext(ctx)

	dir := i.dir
	if dir == "" {
		var err error

		dir, err = InstallDir()
		if err != nil {
			return "", &bee.FilesystemError{Op: "resolve", Path: "install dir", Err: err}
		}
	}

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", &bee.FilesystemError{Op: "mkdir", Path: dir, Err: err}
	}

	target := filepath.Join(dir, assetBasename(asset.DownloadURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.DownloadURL, nil)
	if err != nil {
		return "", &bee.DownloadError{URL: asset.DownloadURL, Err: err}
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return "", &bee.DownloadError{URL: asset.DownloadURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &bee.DownloadError{URL: asset.DownloadURL, StatusCode: resp.StatusCode}
	}

	out, err := os.Create(target)
	if err != nil {
		return "", &bee.FilesystemError{Op: "create", Path: target, Err: err}
	}
	defer out.Close()

	logger.InfoContext(ctx, "installing bee binary",
		"asset", asset.Name,
		"target", target,
		"size", humanize.Bytes(uint64(max(resp.ContentLength, 0))),
	)

	pr := progress.NewReader(resp.Body, resp.ContentLength, progressInterval, func(read, total int64) {
		if total > 0 {
			logger.DebugContext(ctx, "install progress",
				"downloaded", humanize.Bytes(uint64(read)),
				"total", humanize.Bytes(uint64(total)),
			)
		} else {
			logger.DebugContext(ctx, "install progress", "downloaded", humanize.Bytes(uint64(read)))
		}
	})

	if _, err := io.Copy(out, pr); err != nil {
		return "", &bee.DownloadError{URL: asset.DownloadURL, Err: err}
	}

	i.tel.RecordBytes("install", pr.BytesRead())

	if runtime.GOOS != "windows" {
		if err := os.Chmod(target, binaryPerm); err != nil {
			return "", &bee.FilesystemError{Op: "chmod", Path: target, Err: err}
		}
	}

	logger.InfoContext(ctx, "bee binary installed", "target", target, "bytes", pr.BytesRead())

	return target, nil
}

// assetBasename extracts the filename component of the download URL.
func assetBasename(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return path.Base(u.Path)
	}

	return path.Base(rawURL)
}
