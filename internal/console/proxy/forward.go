package proxy

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/aussiebroadwan/examadmin/pkg/httpx"
	"github.com/aussiebroadwan/examadmin/pkg/slogx"
)

// maxForwardBody bounds request bodies the gateway will buffer.
const maxForwardBody = 8 << 20

// bufferBody reads the request body into memory and sets GetBody, so the
// authsdk transport can replay it after a refresh.
func bufferBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					httpx.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
					return
				}
				httpx.WriteError(w, http.StatusBadRequest, "Failed to read request body")
				return
			}
			_ = r.Body.Close()

			r.ContentLength = int64(len(data))
			r.Body = io.NopCloser(bytes.NewReader(data))
			r.GetBody = func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(data)), nil
			}
			next.ServeHTTP(w, r)
		})
	}
}

// newForwarder returns a reverse proxy to upstream whose round trips go
// through transport.
func newForwarder(upstream *url.URL, transport http.RoundTripper) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del("Cookie")
			if id := pr.In.Header.Get(slogx.RequestIDHeader); id != "" {
				pr.Out.Header.Set(slogx.RequestIDHeader, id)
			}
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slogx.FromContext(r.Context()).Error("upstream request failed", "err", err)
			httpx.WriteError(w, http.StatusBadGateway, "Upstream request failed")
		},
	}
}
