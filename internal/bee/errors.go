package bee

import "fmt"

// UnsupportedPlatformError reports that no bee binary is published for the
// current operating system and CPU architecture, or that the expected asset
// name was missing from the release.
type UnsupportedPlatformError struct {
	OS   string
	Arch string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("no bee binary available for platform %s/%s", e.OS, e.Arch)
}

// ReleaseFetchError reports a failure to fetch the latest release metadata.
type ReleaseFetchError struct {
	StatusCode int // HTTP status code, 0 for transport errors
	Err        error
}

func (e *ReleaseFetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("failed to fetch latest bee release (HTTP %d)", e.StatusCode)
	}

	return fmt.Sprintf("failed to fetch latest bee release: %v", e.Err)
}

func (e *ReleaseFetchError) Unwrap() error {
	return e.Err
}

// DownloadError reports a failed transfer of the bee binary asset.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("failed to download bee binary from %s (HTTP %d)", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("failed to download bee binary from %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// FilesystemError reports a failed local filesystem operation during install
// or retrieval (directory creation, file creation, permission change).
type FilesystemError struct {
	Op   string // "mkdir", "create", "chmod"
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("filesystem error (%s %s): %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// NodeStartTimeoutError reports that the node never became reachable within
// the probe budget.
type NodeStartTimeoutError struct {
	Attempts int
}

func (e *NodeStartTimeoutError) Error() string {
	return fmt.Sprintf("bee node failed to start after %d retries", e.Attempts)
}

// RetrievalError reports a failed content retrieval from the node gateway.
type RetrievalError struct {
	Hash       string
	StatusCode int // HTTP status code, 0 for transport errors
	Err        error
}

func (e *RetrievalError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("failed to retrieve %s from bee gateway (HTTP %d)", e.Hash, e.StatusCode)
	}

	return fmt.Sprintf("failed to retrieve %s from bee gateway: %v", e.Hash, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
