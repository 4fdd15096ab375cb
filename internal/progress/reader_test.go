package progress

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_ReportsAtIntervals(t *testing.T) {
	src := bytes.Repeat([]byte("a"), 100)

	var reports []int64

	pr := NewReader(bytes.NewReader(src), int64(len(src)), 25, func(read, total int64) {
		reports = append(reports, read)
		assert.Equal(t, int64(100), total)
	})

	out, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, src, out)
	assert.Equal(t, int64(100), pr.BytesRead())

	// io.ReadAll grows its buffer, so exact report points depend on chunk
	// sizes; every report must still be at least an interval apart.
	require.NotEmpty(t, reports)

	prev := int64(0)
	for _, r := range reports {
		assert.GreaterOrEqual(t, r-prev, int64(25))
		prev = r
	}
}

func TestReader_NoReportBelowInterval(t *testing.T) {
	pr := NewReader(bytes.NewReader([]byte("tiny")), 4, 1024, func(read, total int64) {
		t.Errorf("unexpected report at %d bytes", read)
	})

	_, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, int64(4), pr.BytesRead())
}
