// Package bee holds the shared vocabulary of the fetcher: the release asset
// model and the typed errors every stage reports with.
package bee

// Asset is one downloadable file attached to a bee release.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
}

// Release is the subset of the GitHub release metadata we care about.
type Release struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}
