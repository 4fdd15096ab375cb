package fetch_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/darkobas2/util-beeget/internal/bee"
	"github.com/darkobas2/util-beeget/internal/fetch"
	"github.com/darkobas2/util-beeget/internal/gateway"
	"github.com/darkobas2/util-beeget/internal/node"
	"github.com/darkobas2/util-beeget/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocator struct {
	asset *bee.Asset
	err   error
}

func (l *fakeLocator) LatestAsset(_ context.Context) (*bee.Asset, error) {
	return l.asset, l.err
}

type fakeInstaller struct {
	path  string
	err   error
	asset *bee.Asset
}

func (i *fakeInstaller) Install(_ context.Context, asset *bee.Asset) (string, error) {
	i.asset = asset

	return i.path, i.err
}

// fakeNode stands in for the supervised bee process. It records lifecycle
// calls and, at Join time, whether the stop signal had been set.
type fakeNode struct {
	stop *node.StopSignal

	startErr      error
	starts        int
	joins         int
	stopSetAtJoin bool
}

func (n *fakeNode) Start(_ context.Context) error {
	n.starts++

	return n.startErr
}

func (n *fakeNode) Join(_ time.Duration) error {
	n.joins++
	n.stopSetAtJoin = n.stop.IsSet()

	return nil
}

type fakeRetriever struct {
	filename string
	err      error
	hash     string
}

func (r *fakeRetriever) Retrieve(_ context.Context, hash string) (string, error) {
	r.hash = hash

	return r.filename, r.err
}

type memoryHistory struct {
	records []storage.RetrievalRecord
}

func (h *memoryHistory) TrackRetrieval(record storage.RetrievalRecord) error {
	h.records = append(h.records, record)

	return nil
}

func (h *memoryHistory) GetRetrievals() ([]storage.RetrievalRecord, error) {
	return h.records, nil
}

type memoryNotifier struct {
	messages []string
}

func (n *memoryNotifier) Notify(_ context.Context, content string) error {
	n.messages = append(n.messages, content)

	return nil
}

// readyAfter builds a dialer that refuses the first failures dials and
// accepts from then on.
func readyAfter(failures int) node.DialFunc {
	dials := 0

	return func(_, _ string, _ time.Duration) (net.Conn, error) {
		dials++
		if dials <= failures {
			return nil, errors.New("connection refused")
		}

		client, server := net.Pipe()
		server.Close()

		return client, nil
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bzz/abc123", r.URL.Path)

		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	outputDir := t.TempDir()

	locator := &fakeLocator{asset: &bee.Asset{Name: "bee-linux-amd64", DownloadURL: "https://example.com/bee"}}
	installer := &fakeInstaller{path: "/tmp/bin/bee-linux-amd64"}

	var spawned *fakeNode

	newNode := func(binPath string, stop *node.StopSignal) fetch.Node {
		assert.Equal(t, "/tmp/bin/bee-linux-amd64", binPath)

		spawned = &fakeNode{stop: stop}

		return spawned
	}

	prober := node.NewProber("localhost:1633", 5, time.Millisecond, time.Millisecond, nil).
		WithDial(readyAfter(2))
	retriever := gateway.NewClient(srv.URL, outputDir, nil)

	history := &memoryHistory{}
	notifications := &memoryNotifier{}

	fetcher := fetch.New(locator, installer, newNode, prober, retriever)
	fetcher.History = history
	fetcher.Notifier = notifications

	filename, err := fetcher.Fetch(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outputDir, "downloaded_file_abc123.dat"), filename)

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	assert.Equal(t, locator.asset, installer.asset)

	require.NotNil(t, spawned)
	assert.Equal(t, 1, spawned.starts)
	assert.Equal(t, 1, spawned.joins)
	assert.True(t, spawned.stopSetAtJoin, "stop signal should be set before the node is joined")

	require.Len(t, history.records, 1)
	assert.Equal(t, "abc123", history.records[0].SwarmHash)
	assert.Equal(t, filename, history.records[0].FilePath)
	assert.Equal(t, int64(5), history.records[0].Bytes)
	assert.Equal(t, storage.StatusDownloaded, history.records[0].Status)
	assert.NotEmpty(t, history.records[0].RunID)

	require.Len(t, notifications.messages, 1)
	assert.Contains(t, notifications.messages[0], "abc123")
}

func TestFetchRetrievalFailureStillStopsNode(t *testing.T) {
	t.Parallel()

	locator := &fakeLocator{asset: &bee.Asset{Name: "bee-linux-amd64"}}
	installer := &fakeInstaller{path: "/tmp/bin/bee-linux-amd64"}

	var spawned *fakeNode

	newNode := func(_ string, stop *node.StopSignal) fetch.Node {
		spawned = &fakeNode{stop: stop}

		return spawned
	}

	prober := node.NewProber("localhost:1633", 3, time.Millisecond, time.Millisecond, nil).
		WithDial(readyAfter(0))
	retriever := &fakeRetriever{err: &bee.RetrievalError{Hash: "abc123", StatusCode: http.StatusNotFound}}

	history := &memoryHistory{}

	fetcher := fetch.New(locator, installer, newNode, prober, retriever)
	fetcher.History = history

	_, err := fetcher.Fetch(context.Background(), "abc123")

	var retrievalErr *bee.RetrievalError

	require.ErrorAs(t, err, &retrievalErr)
	assert.Equal(t, http.StatusNotFound, retrievalErr.StatusCode)

	require.NotNil(t, spawned)
	assert.Equal(t, 1, spawned.joins)
	assert.True(t, spawned.stopSetAtJoin)

	require.Len(t, history.records, 1)
	assert.Equal(t, storage.StatusFailed, history.records[0].Status)
	assert.Empty(t, history.records[0].FilePath)
}

func TestFetchProbeTimeoutStillStopsNode(t *testing.T) {
	t.Parallel()

	locator := &fakeLocator{asset: &bee.Asset{Name: "bee-linux-amd64"}}
	installer := &fakeInstaller{path: "/tmp/bin/bee-linux-amd64"}

	var spawned *fakeNode

	newNode := func(_ string, stop *node.StopSignal) fetch.Node {
		spawned = &fakeNode{stop: stop}

		return spawned
	}

	prober := node.NewProber("localhost:1633", 3, time.Millisecond, time.Millisecond, nil).
		WithDial(readyAfter(10))

	fetcher := fetch.New(locator, installer, newNode, prober, &fakeRetriever{})

	_, err := fetcher.Fetch(context.Background(), "abc123")

	var timeoutErr *bee.NodeStartTimeoutError

	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 3, timeoutErr.Attempts)

	require.NotNil(t, spawned)
	assert.True(t, spawned.stopSetAtJoin)
}

func TestFetchLocateFailureStartsNoNode(t *testing.T) {
	t.Parallel()

	locator := &fakeLocator{err: &bee.ReleaseFetchError{StatusCode: http.StatusForbidden}}

	spawnedNodes := 0

	newNode := func(_ string, stop *node.StopSignal) fetch.Node {
		spawnedNodes++

		return &fakeNode{stop: stop}
	}

	notifications := &memoryNotifier{}

	fetcher := fetch.New(locator, &fakeInstaller{}, newNode, nil, &fakeRetriever{})
	fetcher.Notifier = notifications

	_, err := fetcher.Fetch(context.Background(), "abc123")

	var fetchErr *bee.ReleaseFetchError

	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, spawnedNodes)

	require.Len(t, notifications.messages, 1)
	assert.Contains(t, notifications.messages[0], "failed")
}

func TestFetchNodeStartFailureSkipsJoin(t *testing.T) {
	t.Parallel()

	locator := &fakeLocator{asset: &bee.Asset{Name: "bee-linux-amd64"}}

	var spawned *fakeNode

	newNode := func(_ string, stop *node.StopSignal) fetch.Node {
		spawned = &fakeNode{stop: stop, startErr: errors.New("spawn: permission denied")}

		return spawned
	}

	fetcher := fetch.New(locator, &fakeInstaller{path: "/tmp/bee"}, newNode, nil, &fakeRetriever{})

	_, err := fetcher.Fetch(context.Background(), "abc123")
	require.Error(t, err)

	require.NotNil(t, spawned)
	assert.Equal(t, 1, spawned.starts)
	assert.Zero(t, spawned.joins)
}
