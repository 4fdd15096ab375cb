// Package progress provides an io.Reader wrapper that reports transfer
// progress at byte intervals.
package progress

import "io"

// Reader wraps an io.Reader and invokes a callback every interval bytes.
// total may be negative when the source length is unknown (chunked responses).
type Reader struct {
	r         io.Reader
	total     int64
	interval  int64
	onReport  func(read, total int64)
	read      int64
	sinceLast int64
}

func NewReader(r io.Reader, total, interval int64, onReport func(read, total int64)) *Reader {
	return &Reader{
		r:        r,
		total:    total,
		interval: interval,
		onReport: onReport,
	}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.read += int64(n)
		pr.sinceLast += int64(n)

		if pr.sinceLast >= pr.interval {
			pr.onReport(pr.read, pr.total)
			pr.sinceLast = 0
		}
	}

	return n, err
}

// BytesRead returns the cumulative number of bytes read so far.
func (pr *Reader) BytesRead() int64 {
	return pr.read
}
