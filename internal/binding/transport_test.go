package binding

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinelist/watchlist/internal/envelope"
)

// roundTripFunc lets a test stand in for the network.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestTransport_AgainstServer(t *testing.T) {
	router := mux.NewRouter()
	router.Use(DecryptRequests(serverCodec(t)), EncryptResponses(serverCodec(t)))
	router.HandleFunc("/api/watchlist", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sealed":   WasDecrypted(r.Context()),
			"received": json.RawMessage(body),
		})
	})

	server := httptest.NewServer(router)
	defer server.Close()

	client := &http.Client{Transport: &Transport{Codec: clientCodec(t)}}

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/watchlist", strings.NewReader(`{"movieId":603}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Empty(t, res.Header.Get(HeaderName))
	require.JSONEq(t, `{"sealed":true,"received":{"movieId":603}}`, string(body))
	require.Equal(t, int64(len(body)), res.ContentLength)

	// the caller's request is left alone
	require.Empty(t, req.Header.Get(HeaderName))
}

func TestTransport_SealsRequestBody(t *testing.T) {
	var sent struct {
		header string
		body   []byte
	}

	transport := &Transport{
		Codec: clientCodec(t),
		Base: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			sent.header = req.Header.Get(HeaderName)
			sent.body, _ = io.ReadAll(req.Body)
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       io.NopCloser(strings.NewReader(`{"success":true}`)),
				Request:    req,
			}, nil
		}),
	}

	req := httptest.NewRequest(http.MethodPost, "http://watchlist.test/api/watchlist", strings.NewReader(`{"userId":"abc123"}`))
	res, err := transport.RoundTrip(req)
	require.NoError(t, err)

	// an unsealed response is returned as is
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, `{"success":true}`, string(body))

	var env envelope.Envelope
	require.NoError(t, json.Unmarshal(sent.body, &env))
	require.NotEmpty(t, env.CipherBody)
	require.NotContains(t, string(sent.body), "abc123")
	env.WrappedKey = sent.header

	payload, err := serverCodec(t).Open(env)
	require.NoError(t, err)
	require.JSONEq(t, `{"userId":"abc123"}`, string(payload))
}

func TestTransport_NeverSendsPlaintextOnSealFailure(t *testing.T) {
	called := false
	transport := &Transport{
		Codec: clientCodec(t),
		Base: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			called = true
			return nil, errors.New("unexpected request")
		}),
	}

	req := httptest.NewRequest(http.MethodPost, "http://watchlist.test/api/watchlist", strings.NewReader(`{"userId":`))
	_, err := transport.RoundTrip(req)
	require.ErrorIs(t, err, envelope.ErrEncoding)
	require.False(t, called)
}

func TestTransport_RequestWithoutBody(t *testing.T) {
	transport := &Transport{
		Codec: clientCodec(t),
		Base: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			assert.Empty(t, req.Header.Get(HeaderName))
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{},
				Body:       io.NopCloser(strings.NewReader(`[]`)),
				Request:    req,
			}, nil
		}),
	}

	res, err := transport.RoundTrip(httptest.NewRequest(http.MethodGet, "http://watchlist.test/api/watchlist", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestTransport_OpenFailure(t *testing.T) {
	sealed, err := clientCodec(t).Seal(map[string]string{"userId": "abc123"})
	require.NoError(t, err)
	body, err := json.Marshal(sealed)
	require.NoError(t, err)

	transport := &Transport{
		Codec: clientCodec(t),
		Base: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			// sealed for the server, so the client can't open it
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{HeaderName: []string{sealed.WrappedKey}},
				Body:       io.NopCloser(bytes.NewReader(body)),
				Request:    req,
			}, nil
		}),
	}

	_, err = transport.RoundTrip(httptest.NewRequest(http.MethodGet, "http://watchlist.test/api/watchlist", nil))
	require.ErrorIs(t, err, envelope.ErrCrypto)
}

func TestTransport_MissingCodec(t *testing.T) {
	_, err := (&Transport{}).RoundTrip(httptest.NewRequest(http.MethodGet, "http://watchlist.test/", nil))
	require.ErrorIs(t, err, envelope.ErrConfig)
}
