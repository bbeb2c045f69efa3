package binding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"k8s.io/klog/v2"

	"github.com/cinelist/watchlist/internal/envelope"
	"github.com/cinelist/watchlist/pkg/logs"
)

const (
	// FieldName is the name of the only field of a sealed JSON body.
	FieldName = "encryptedData"

	// HeaderName carries the wrapped key of a sealed message.
	HeaderName = "X-Encrypted-Key"

	// DefaultMaxBodyBytes bounds how much of a request body DecryptRequests will read.
	DefaultMaxBodyBytes int64 = 10 << 20
)

const (
	messageInvalidPayload  = "Invalid encrypted payload"
	messageReplayedPayload = "Replayed encrypted payload"
	messageBodyTooLarge    = "Request body too large"
	messageUnreadableBody  = "Failed to read request body"
	messageEncryptFailed   = "Failed to encrypt response"
)

type options struct {
	maxBodyBytes int64
	replay       *ReplayGuard
}

// Option configures the server middleware.
type Option func(*options)

// WithMaxBodyBytes sets the largest request body DecryptRequests will read. Larger bodies are rejected with 413.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithReplayGuard makes DecryptRequests reject envelopes whose wrapped key has already been opened.
func WithReplayGuard(g *ReplayGuard) Option {
	return func(o *options) {
		o.replay = g
	}
}

func newOptions(opts []Option) options {
	o := options{maxBodyBytes: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type decryptedKey struct{}

// WasDecrypted reports whether the body of the request carrying ctx arrived sealed and was opened by
// DecryptRequests.
func WasDecrypted(ctx context.Context) bool {
	v, _ := ctx.Value(decryptedKey{}).(bool)
	return v
}

// DecryptRequests returns middleware which opens sealed request bodies. A request which carries both the wrapped key
// header and an encryptedData field has its body replaced by the recovered JSON payload and the header removed. Any
// other request is passed on unmodified. A sealed request which can't be opened is rejected with 400 and never
// reaches the next handler.
func DecryptRequests(codec *envelope.Codec, opts ...Option) mux.MiddlewareFunc {
	o := newOptions(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := klog.FromContext(r.Context()).WithName("envelope")

			wrappedKey := r.Header.Get(HeaderName)
			if wrappedKey == "" || r.Body == nil || r.Body == http.NoBody {
				metricPassthrough.Inc()
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, o.maxBodyBytes))
			_ = r.Body.Close()
			if err != nil {
				var maxBytesErr *http.MaxBytesError
				if errors.As(err, &maxBytesErr) {
					observeResult(operationOpen, resultTooLarge)
					log.Info("Rejected sealed request", "reason", "body too large", "limit", maxBytesErr.Limit)
					writeError(w, messageBodyTooLarge, http.StatusRequestEntityTooLarge)
					return
				}
				log.Error(err, "Failed to read request body")
				writeError(w, messageUnreadableBody, http.StatusBadRequest)
				return
			}

			cipherBody, present, err := cipherBodyField(body)
			if !present {
				metricPassthrough.Inc()
				log.V(logs.Debug).Info("Request has a wrapped key but no encrypted body, passing through", "path", r.URL.Path)
				r.Body = io.NopCloser(bytes.NewReader(body))
				next.ServeHTTP(w, r)
				return
			}

			var payload json.RawMessage
			if err == nil {
				payload, err = codec.Open(envelope.Envelope{CipherBody: cipherBody, WrappedKey: wrappedKey})
			}
			observe(operationOpen, err)
			if err != nil {
				log.Error(err, "Failed to open sealed request", "class", envelope.Class(err), "path", r.URL.Path)
				writeError(w, messageInvalidPayload, http.StatusBadRequest)
				return
			}

			if o.replay != nil && !o.replay.Check(wrappedKey) {
				observeResult(operationOpen, resultReplayed)
				log.Info("Rejected sealed request", "reason", "wrapped key replayed", "path", r.URL.Path)
				writeError(w, messageReplayedPayload, http.StatusBadRequest)
				return
			}

			log.V(logs.Trace).Info("Opened sealed request", "path", r.URL.Path, "payload", string(payload))

			opened := r.Clone(context.WithValue(r.Context(), decryptedKey{}, true))
			opened.Header.Del(HeaderName)
			opened.Header.Del("Content-Length")
			opened.Header.Set("Content-Type", "application/json")
			opened.Body = io.NopCloser(bytes.NewReader(payload))
			opened.ContentLength = int64(len(payload))

			next.ServeHTTP(w, opened)
		})
	}
}

// cipherBodyField extracts the encryptedData field from a JSON object. The field is considered absent when the body
// isn't a JSON object, or the field is missing, null or an empty string. A field which is present with any other
// type is reported with an error.
func cipherBodyField(body []byte) (string, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", false, nil
	}

	raw, ok := fields[FieldName]
	if !ok || string(raw) == "null" {
		return "", false, nil
	}

	var cipherBody string
	if err := json.Unmarshal(raw, &cipherBody); err != nil {
		return "", true, fmt.Errorf("%w: %s must be a string", envelope.ErrEncoding, FieldName)
	}

	return cipherBody, cipherBody != "", nil
}

// EncryptResponses returns middleware which seals JSON responses for the peer. The downstream response is buffered;
// if it is a non-empty JSON body it is replaced by {"encryptedData":"..."} and the wrapped key is set in the
// response header, keeping the original status code. If sealing fails the client receives a 500 error instead, and
// the plaintext response is discarded. Responses which are not JSON are written unmodified.
func EncryptResponses(codec *envelope.Codec) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := klog.FromContext(r.Context()).WithName("envelope")

			buf := newBufferedResponse()
			next.ServeHTTP(buf, r)

			if !isJSON(buf.Header()) || len(bytes.TrimSpace(buf.body.Bytes())) == 0 {
				buf.writeTo(w)
				return
			}

			env, err := codec.Seal(json.RawMessage(buf.body.Bytes()))
			observe(operationSeal, err)
			if err != nil {
				log.Error(err, "Failed to seal response", "class", envelope.Class(err), "path", r.URL.Path)
				writeError(w, messageEncryptFailed, http.StatusInternalServerError)
				return
			}

			sealed, err := json.Marshal(env)
			if err != nil {
				log.Error(err, "Failed to encode sealed response", "path", r.URL.Path)
				writeError(w, messageEncryptFailed, http.StatusInternalServerError)
				return
			}

			header := w.Header()
			for k, v := range buf.Header() {
				header[k] = v
			}
			header.Del("Content-Length")
			header.Set("Content-Type", "application/json")
			header.Set(HeaderName, env.WrappedKey)

			w.WriteHeader(buf.status)
			if _, err := w.Write(sealed); err != nil {
				log.V(logs.Debug).Info("Failed to write sealed response", "err", err)
			}
		})
	}
}

func isJSON(h http.Header) bool {
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Success: false, Message: message})
}
