package logs_test

import (
	"bytes"
	"log"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinelist/watchlist/pkg/logs"
)

func TestAddFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test-logs", pflag.ContinueOnError)
	logs.AddFlags(fs)

	tests := []struct {
		name         string
		expectHidden bool
		expectValue  string
	}{
		{name: "log-level", expectValue: "0"},
		{name: "logging-format", expectValue: "text"},
		{name: "vmodule"},
		{name: "log-text-split-stream", expectHidden: true, expectValue: "true"},
		{name: "log-json-split-stream", expectHidden: true, expectValue: "true"},
		{name: "feature-gates", expectHidden: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fs.Lookup(tt.name)
			require.NotNil(t, f, "flag %q should be registered", tt.name)
			assert.Equal(t, tt.expectHidden, f.Hidden)
			if tt.expectValue != "" {
				assert.Equal(t, tt.expectValue, f.Value.String())
			}
		})
	}

	assert.Nil(t, fs.Lookup("v"), "--v is renamed to --log-level")
	assert.Equal(t, "log-level", fs.ShorthandLookup("v").Name)
}

func TestAddFlags_NoLongFormV(t *testing.T) {
	fs := pflag.NewFlagSet("test-logs", pflag.ContinueOnError)
	logs.AddFlags(fs)

	require.Error(t, fs.Parse([]string{"--v=3"}), "the long form of --v is not available")
}

func TestLogToSlogWriter(t *testing.T) {
	given := strings.TrimPrefix(`
http: TLS handshake error from 10.0.0.1:51234: EOF
http: Accept error: accept tcp [::]:8443: too many open files; retrying in 5ms
failed to write response body
this is a happy log that should show as INFO`, "\n")
	expect := strings.TrimPrefix(`
level=ERROR msg="http: TLS handshake error from 10.0.0.1:51234: EOF" source=http-server
level=ERROR msg="http: Accept error: accept tcp [::]:8443: too many open files; retrying in 5ms" source=http-server
level=ERROR msg="failed to write response body" source=http-server
level=INFO msg="this is a happy log that should show as INFO" source=http-server
`, "\n")

	gotBuf := &bytes.Buffer{}
	slogHandler := slog.NewTextHandler(gotBuf, &slog.HandlerOptions{
		// Remove the timestamp from the logs so that we can compare them.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "time" {
				return slog.Attr{}
			}
			return a
		},
	})
	slogLogger := slog.New(slogHandler)

	logger := log.New(&bytes.Buffer{}, "", 0)
	logger.SetOutput(logs.LogToSlogWriter{Slog: slogLogger, Source: "http-server"})

	for _, line := range strings.Split(given, "\n") {
		logger.Print(line)
	}

	assert.Equal(t, expect, gotBuf.String())
}

func TestNewStdLogger(t *testing.T) {
	logger := logs.NewStdLogger("http-server")
	require.NotNil(t, logger)
	assert.Equal(t, 0, logger.Flags())
	assert.Empty(t, logger.Prefix())
}
