package telemetry

import (
	"net/http"
	"time"

	"github.com/darkobas2/util-beeget/internal/logctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewTransport wraps base with otel spans and structured request logging.
// All outbound calls (release API, asset download, local gateway) go through
// it, so every request shows up in traces and in the debug log.
func NewTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	return otelhttp.NewTransport(&loggingTransport{next: base})
}

type loggingTransport struct {
	next http.RoundTripper
}

func (lt *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	logger := logctx.LoggerFromContext(req.Context())
	start := time.Now()

	resp, err := lt.next.RoundTrip(req)

	attrs := []any{
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"duration_ms", time.Since(start).Milliseconds(),
	}

	if err != nil {
		logger.ErrorContext(req.Context(), "outbound request failed", append(attrs, "err", err)...)

		return nil, err
	}

	attrs = append(attrs, "status", resp.StatusCode)

	if resp.StatusCode >= http.StatusBadRequest {
		logger.WarnContext(req.Context(), "outbound request completed", attrs...)
	} else {
		logger.DebugContext(req.Context(), "outbound request completed", attrs...)
	}

	return resp, nil
}
