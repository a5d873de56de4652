package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/and161185/streamcheck/internal/utils"
)

// HeaderHash carries the HMAC-SHA256 of the request or response body.
const HeaderHash = "HashSHA256"

// VerifyHashMiddleware rejects bodies whose hash does not match key and signs
// responses with it. The hash covers the body as sent, so this must run before
// DecompressMiddleware. An empty key disables the check.
func VerifyHashMiddleware(key string, onReject func(r *http.Request)) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodPost {
				bodyBytes, err := io.ReadAll(r.Body)
				if err != nil {
					http.Error(w, "bad body", http.StatusBadRequest)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

				if !utils.ValidHash(bodyBytes, key, r.Header.Get(HeaderHash)) {
					if onReject != nil {
						onReject(r)
					}
					http.Error(w, "invalid hash", http.StatusBadRequest)
					return
				}
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			capture.flush(key)
		})
	}
}

// responseCapture holds the response back until its hash can be set as a header.
type responseCapture struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
}

func (r *responseCapture) Write(b []byte) (int, error) {
	return r.body.Write(b)
}

func (r *responseCapture) flush(key string) {
	r.ResponseWriter.Header().Set(HeaderHash, utils.CalculateHash(r.body.Bytes(), key))
	if r.status != 0 {
		r.ResponseWriter.WriteHeader(r.status)
	}
	_, _ = r.ResponseWriter.Write(r.body.Bytes())
}
