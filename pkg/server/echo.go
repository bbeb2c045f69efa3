package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fatih/color"
	"k8s.io/klog/v2"

	"github.com/cinelist/watchlist/internal/binding"
	"github.com/cinelist/watchlist/pkg/logs"
)

type echoResponse struct {
	Success bool            `json:"success"`
	Sealed  bool            `json:"sealed"`
	Payload json.RawMessage `json:"payload"`
}

// echoHandler returns the request payload to the caller. A peer can use it to check that both sides agree on the
// envelope format: the payload goes out sealed, is opened here, and comes back sealed.
func echoHandler(w http.ResponseWriter, r *http.Request) {
	log := klog.FromContext(r.Context()).WithName("echo")

	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, fmt.Sprintf("decoding body: %v", err), http.StatusBadRequest)
		return
	}

	sealed := binding.WasDecrypted(r.Context())

	// print a trace of the exchange to the console, without the payload
	if sealed {
		color.Green("-- %s %s -> sealed, %d bytes\n", r.Method, r.URL.Path, len(payload))
	} else {
		color.Yellow("-- %s %s -> plaintext, %d bytes\n", r.Method, r.URL.Path, len(payload))
	}
	log.V(logs.Trace).Info("Echoing payload", "sealed", sealed, "payload", string(payload))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(echoResponse{Success: true, Sealed: sealed, Payload: payload})
}
