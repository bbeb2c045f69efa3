package binding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/cinelist/watchlist/internal/envelope"
)

// Transport is an http.RoundTripper which seals JSON request bodies for the server and opens sealed responses. The
// caller's request is never modified. If a request body can't be sealed the request is not sent, so plaintext never
// reaches the network.
type Transport struct {
	Codec *envelope.Codec

	// Base is the RoundTripper used to send requests. If nil, http.DefaultTransport is used.
	Base http.RoundTripper
}

var _ http.RoundTripper = &Transport{}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Codec == nil {
		return nil, fmt.Errorf("%w: transport has no codec", envelope.ErrConfig)
	}

	out := req.Clone(req.Context())

	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("while reading request body: %w", err)
		}

		if len(bytes.TrimSpace(body)) > 0 {
			env, err := t.Codec.Seal(json.RawMessage(body))
			observe(operationSeal, err)
			if err != nil {
				return nil, fmt.Errorf("while sealing request body: %w", err)
			}

			sealed, err := json.Marshal(env)
			if err != nil {
				return nil, fmt.Errorf("while encoding sealed request body: %w", err)
			}

			out.Header.Set(HeaderName, env.WrappedKey)
			out.Header.Set("Content-Type", "application/json")
			body = sealed
		}

		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	res, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}

	wrappedKey := res.Header.Get(HeaderName)
	if wrappedKey == "" || res.Body == nil {
		return res, nil
	}

	body, err := io.ReadAll(res.Body)
	_ = res.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("while reading response body: %w", err)
	}

	cipherBody, present, err := cipherBodyField(body)
	if !present {
		res.Body = io.NopCloser(bytes.NewReader(body))
		return res, nil
	}

	var payload json.RawMessage
	if err == nil {
		payload, err = t.Codec.Open(envelope.Envelope{CipherBody: cipherBody, WrappedKey: wrappedKey})
	}
	observe(operationOpen, err)
	if err != nil {
		return nil, fmt.Errorf("while opening sealed response from %s: %w", req.URL.Redacted(), err)
	}

	res.Header.Del(HeaderName)
	res.Header.Set("Content-Length", strconv.Itoa(len(payload)))
	res.Body = io.NopCloser(bytes.NewReader(payload))
	res.ContentLength = int64(len(payload))

	return res, nil
}
