package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cinelist/watchlist/internal/binding"
	"github.com/cinelist/watchlist/internal/envelope"
	"github.com/cinelist/watchlist/pkg/config"
	"github.com/cinelist/watchlist/pkg/version"
)

var requestFlags struct {
	url     string
	method  string
	data    string
	timeout time.Duration
	keys    config.Keys
}

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "send a sealed request to a watchlist server, acting as the client",
	Long: `Send a request to a watchlist server the way the browser client does: the
JSON body is sealed for the server, and a sealed response is opened before it
is printed.`,
	Example: `  watchlist request --url https://localhost:8080/api/echo --data '{"userId":"abc123"}' \
    --private-key-file keys/client.pem --peer-public-key-file keys/server.pub.pem`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := requestFlags.keys.Load()
		if err != nil {
			return fmt.Errorf("failed to load keys: %w", err)
		}
		codec, err := envelope.NewCodec(keys)
		if err != nil {
			return err
		}

		client := &http.Client{
			Transport: &binding.Transport{Codec: codec},
			Timeout:   requestFlags.timeout,
		}

		status, body, err := sendRequest(cmd.Context(), client, requestFlags.method, requestFlags.url, requestFlags.data)
		if err != nil {
			return err
		}

		printStatus(cmd.OutOrStdout(), status)
		fmt.Fprintln(cmd.OutOrStdout(), prettyJSON(body))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.Flags().StringVar(&requestFlags.url, "url", "", "URL to send the request to.")
	requestCmd.Flags().StringVarP(&requestFlags.method, "method", "X", "", "HTTP method. Defaults to POST when --data is given, GET otherwise.")
	requestCmd.Flags().StringVarP(&requestFlags.data, "data", "d", "", "JSON request body.")
	requestCmd.Flags().DurationVar(&requestFlags.timeout, "timeout", 30*time.Second, "Request timeout.")
	addKeyFlags(requestCmd, &requestFlags.keys)
	_ = requestCmd.MarkFlagRequired("url")
}

func sendRequest(ctx context.Context, client *http.Client, method, url, data string) (int, []byte, error) {
	if method == "" {
		method = http.MethodGet
		if data != "" {
			method = http.MethodPost
		}
	}

	var body io.Reader
	if data != "" {
		if !json.Valid([]byte(data)) {
			return 0, nil, fmt.Errorf("%w: --data is not valid JSON", envelope.ErrEncoding)
		}
		body = strings.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	version.SetUserAgent(req)

	res, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return res.StatusCode, resBody, nil
}

func printStatus(w io.Writer, status int) {
	line := fmt.Sprintf("%d %s", status, http.StatusText(status))
	if status >= 400 {
		fmt.Fprintln(w, color.RedString(line))
		return
	}
	fmt.Fprintln(w, color.GreenString(line))
}

func prettyJSON(body []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return string(body)
	}
	return out.String()
}
