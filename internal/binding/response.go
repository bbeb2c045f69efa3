package binding

import (
	"bytes"
	"net/http"
)

// bufferedResponse holds a handler's response in memory so that it can be sealed before anything reaches the
// client.
type bufferedResponse struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{
		header: make(http.Header),
		status: http.StatusOK,
	}
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}

// writeTo copies the buffered response unmodified to w.
func (b *bufferedResponse) writeTo(w http.ResponseWriter) {
	header := w.Header()
	for k, v := range b.header {
		header[k] = v
	}
	w.WriteHeader(b.status)
	_, _ = b.body.WriteTo(w)
}
