// Package release resolves and installs the bee binary published for the
// current platform.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/darkobas2/util-beeget/internal/bee"
	"github.com/darkobas2/util-beeget/internal/logctx"
	"github.com/darkobas2/util-beeget/internal/telemetry"
	"golang.org/x/oauth2"
)

const metadataTimeout = 30 * time.Second

// assetNames maps the platforms bee publishes binaries for to the asset
// filename attached to each release. A platform missing here is unsupported.
var assetNames = map[string]string{
	"linux/amd64":   "bee-linux-amd64",
	"linux/arm64":   "bee-linux-arm64",
	"darwin/amd64":  "bee-darwin-amd64",
	"darwin/arm64":  "bee-darwin-arm64",
	"windows/amd64": "bee-windows-amd64.exe",
}

// AssetNameFor returns the release asset filename for a GOOS/GOARCH pair.
func AssetNameFor(goos, goarch string) (string, bool) {
	name, ok := assetNames[goos+"/"+goarch]

	return name, ok
}

// Locator resolves the latest published bee release asset.
type Locator struct {
	baseURL string
	repo    string
	client  *http.Client
}

// NewLocator builds a locator against the given API base URL and repository
// ("owner/name"). A non-empty token authenticates requests, which lifts
// GitHub's anonymous rate limit.
func NewLocator(baseURL, repo, token string) *Locator {
	client := &http.Client{
		Transport: telemetry.NewTransport(nil),
		Timeout:   metadataTimeout,
	}

	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	return &Locator{
		baseURL: baseURL,
		repo:    repo,
		client:  client,
	}
}

// LatestAsset resolves the download URL of the newest bee binary for the
// platform this process runs on.
func (l *Locator) LatestAsset(ctx context.Context) (*bee.Asset, error) {
	return l.LatestAssetFor(ctx, runtime.GOOS, runtime.GOARCH)
}

// LatestAssetFor is LatestAsset for an explicit platform. The release
// metadata is always fetched first; the platform lookup is evaluated against
// the returned asset list.
func (l *Locator) LatestAssetFor(ctx context.Context, goos, goarch string) (*bee.Asset, error) {
	logger := logctx.LoggerFromContext(ctx)

	release, err := l.latestRelease(ctx)
	if err != nil {
		return nil, err
	}

	logger.DebugContext(ctx, "resolved latest bee release",
		"tag", release.TagName, "asset_count", len(release.Assets))

	wantName, ok := AssetNameFor(goos, goarch)
	if !ok {
		return nil, &bee.UnsupportedPlatformError{OS: goos, Arch: goarch}
	}

	for i := range release.Assets {
		if release.Assets[i].Name == wantName {
			return &release.Assets[i], nil
		}
	}

	// The platform is known but the release carries no binary for it.
	return nil, &bee.UnsupportedPlatformError{OS: goos, Arch: goarch}
}

func (l *Locator) latestRelease(ctx context.Context) (*bee.Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", l.baseURL, l.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &bee.ReleaseFetchError{Err: err}
	}

	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &bee.ReleaseFetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &bee.ReleaseFetchError{StatusCode: resp.StatusCode}
	}

	var release bee.Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, &bee.ReleaseFetchError{Err: fmt.Errorf("failed to decode release metadata: %w", err)}
	}

	return &release, nil
}
