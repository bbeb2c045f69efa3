package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/cinelist/watchlist/internal/binding"
	"github.com/cinelist/watchlist/internal/envelope"
)

const (
	defaultListenAddress   = ":8080"
	defaultShutdownTimeout = 10 * time.Second

	redacted = "<redacted>"
)

// Config wraps the options for a run of the watchlist server.
type Config struct {
	ListenAddress   string        `yaml:"listen-address"`
	TLS             TLS           `yaml:"tls,omitempty"`
	AllowedOrigins  []string      `yaml:"allowed-origins,omitempty"`
	Keys            Keys          `yaml:"keys"`
	MaxBodyBytes    int64         `yaml:"max-body-bytes,omitempty"`
	ReplayWindow    time.Duration `yaml:"replay-window,omitempty"`
	EnableMetrics   bool          `yaml:"enable-metrics,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout,omitempty"`
}

// TLS configures the serving certificate. When both files are empty the server listens in plain HTTP, which is only
// suitable behind a TLS terminating proxy.
type TLS struct {
	CertFile string `yaml:"cert-file,omitempty"`
	KeyFile  string `yaml:"key-file,omitempty"`
}

// Keys locates the server's RSA private key and the browser client's RSA public key. Each key is given either inline
// as PEM or as a path to a PEM file. Inline PEM may use literal \n sequences in place of newlines, which is how
// multi-line values usually end up in environment variables.
type Keys struct {
	PrivateKey        string `yaml:"private-key,omitempty"`
	PrivateKeyFile    string `yaml:"private-key-file,omitempty"`
	PeerPublicKey     string `yaml:"peer-public-key,omitempty"`
	PeerPublicKeyFile string `yaml:"peer-public-key-file,omitempty"`
}

// Load reads and parses the configured key material.
func (k Keys) Load() (envelope.Keys, error) {
	private, err := readPEM(k.PrivateKey, k.PrivateKeyFile)
	if err != nil {
		return envelope.Keys{}, fmt.Errorf("private key: %w", err)
	}

	peer, err := readPEM(k.PeerPublicKey, k.PeerPublicKeyFile)
	if err != nil {
		return envelope.Keys{}, fmt.Errorf("peer public key: %w", err)
	}

	return envelope.ParseKeys(private, peer)
}

func readPEM(inline, path string) ([]byte, error) {
	if inline != "" {
		return []byte(strings.ReplaceAll(inline, `\n`, "\n")), nil
	}
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", envelope.ErrConfig, err)
	}
	return bytes.TrimSpace(data), nil
}

// Dump generates a YAML string of the Config object. Inline private key material is redacted.
func (c *Config) Dump() (string, error) {
	dump := *c
	if dump.Keys.PrivateKey != "" {
		dump.Keys.PrivateKey = redacted
	}

	d, err := yaml.Marshal(&dump)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate YAML dump of config")
	}

	return string(d), nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.ListenAddress == "" {
		result = multierror.Append(result, fmt.Errorf("listen-address is required"))
	}

	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		result = multierror.Append(result, fmt.Errorf("tls cert-file and key-file must be set together"))
	}

	switch {
	case c.Keys.PrivateKey == "" && c.Keys.PrivateKeyFile == "":
		result = multierror.Append(result, fmt.Errorf("%w: private-key or private-key-file is required", envelope.ErrConfig))
	case c.Keys.PrivateKey != "" && c.Keys.PrivateKeyFile != "":
		result = multierror.Append(result, fmt.Errorf("private-key and private-key-file are mutually exclusive"))
	}

	switch {
	case c.Keys.PeerPublicKey == "" && c.Keys.PeerPublicKeyFile == "":
		result = multierror.Append(result, fmt.Errorf("%w: peer-public-key or peer-public-key-file is required", envelope.ErrConfig))
	case c.Keys.PeerPublicKey != "" && c.Keys.PeerPublicKeyFile != "":
		result = multierror.Append(result, fmt.Errorf("peer-public-key and peer-public-key-file are mutually exclusive"))
	}

	if c.MaxBodyBytes < 0 {
		result = multierror.Append(result, fmt.Errorf("max-body-bytes must not be negative, got %d", c.MaxBodyBytes))
	}

	if c.ReplayWindow < 0 {
		result = multierror.Append(result, fmt.Errorf("replay-window must not be negative, got %s", c.ReplayWindow))
	}

	if c.ShutdownTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("shutdown-timeout must not be negative, got %s", c.ShutdownTimeout))
	}

	return result.ErrorOrNil()
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = defaultListenAddress
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = binding.DefaultMaxBodyBytes
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
}

// Decode reads a YAML config file and fills in defaults, without validating the result. Use it when the config will
// be combined with command line flags before validation.
func Decode(data []byte) (Config, error) {
	var config Config

	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return config, errors.Wrap(err, "failed to parse config file")
	}

	config.applyDefaults()

	return config, nil
}

// ParseConfig reads config into a struct used to configure the server
func ParseConfig(data []byte) (Config, error) {
	config, err := Decode(data)
	if err != nil {
		return config, err
	}

	if err = config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// ServeFlags holds the command line flags of the serve command. Zero values mean "not given"; any flag which is given
// takes precedence over the config file. Every flag can also be set with a WATCHLIST_ environment variable.
type ServeFlags struct {
	ConfigFilePath    string
	ListenAddress     string
	TLSCertFile       string
	TLSKeyFile        string
	AllowedOrigins    []string
	PrivateKey        string
	PrivateKeyFile    string
	PeerPublicKey     string
	PeerPublicKeyFile string
	MaxBodyBytes      int64
	ReplayWindow      time.Duration
	EnableMetrics     bool
	ShutdownTimeout   time.Duration
}

// InitServeCmdFlags registers the serve command's flags on c.
func InitServeCmdFlags(c *cobra.Command, cfg *ServeFlags) {
	c.PersistentFlags().StringVarP(&cfg.ConfigFilePath, "config", "c", "", "Config file location.")
	c.PersistentFlags().StringVar(&cfg.ListenAddress, "listen-address", "", fmt.Sprintf("Address to listen on (default %q).", defaultListenAddress))
	c.PersistentFlags().StringVar(&cfg.TLSCertFile, "tls-cert-file", "", "Path to the serving certificate. Requires --tls-key-file.")
	c.PersistentFlags().StringVar(&cfg.TLSKeyFile, "tls-key-file", "", "Path to the serving certificate's private key. Requires --tls-cert-file.")
	c.PersistentFlags().StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", nil, "Origins allowed to make cross-origin requests, e.g. https://watchlist.example.com.")
	c.PersistentFlags().StringVar(&cfg.PrivateKey, "private-key", "", "The server's RSA private key as PEM. Usually set through WATCHLIST_PRIVATE_KEY.")
	c.PersistentFlags().StringVar(&cfg.PrivateKeyFile, "private-key-file", "", "Path to the server's RSA private key.")
	c.PersistentFlags().StringVar(&cfg.PeerPublicKey, "peer-public-key", "", "The client's RSA public key as PEM. Usually set through WATCHLIST_PEER_PUBLIC_KEY.")
	c.PersistentFlags().StringVar(&cfg.PeerPublicKeyFile, "peer-public-key-file", "", "Path to the client's RSA public key.")
	c.PersistentFlags().Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", 0, fmt.Sprintf("Largest sealed request body accepted (default %d).", binding.DefaultMaxBodyBytes))
	c.PersistentFlags().DurationVar(&cfg.ReplayWindow, "replay-window", 0, "Reject sealed requests whose wrapped key was already seen within this window. 0 disables replay protection.")
	c.PersistentFlags().BoolVar(&cfg.EnableMetrics, "enable-metrics", false, "Serve Prometheus metrics on /metrics.")
	c.PersistentFlags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 0, fmt.Sprintf("How long to wait for in-flight requests on shutdown (default %s).", defaultShutdownTimeout))
}

// ValidateAndCombineConfig merges the command line flags into the config file's values and validates the result.
func ValidateAndCombineConfig(log logr.Logger, cfg Config, flags ServeFlags) (Config, error) {
	res := cfg

	override := func(name string, given bool, apply func()) {
		if !given {
			return
		}
		log.V(1).Info("Using command line flag over config file", "flag", name)
		apply()
	}

	override("listen-address", flags.ListenAddress != "", func() { res.ListenAddress = flags.ListenAddress })
	override("tls-cert-file", flags.TLSCertFile != "", func() { res.TLS.CertFile = flags.TLSCertFile })
	override("tls-key-file", flags.TLSKeyFile != "", func() { res.TLS.KeyFile = flags.TLSKeyFile })
	override("allowed-origins", len(flags.AllowedOrigins) > 0, func() { res.AllowedOrigins = flags.AllowedOrigins })
	override("max-body-bytes", flags.MaxBodyBytes != 0, func() { res.MaxBodyBytes = flags.MaxBodyBytes })
	override("replay-window", flags.ReplayWindow != 0, func() { res.ReplayWindow = flags.ReplayWindow })
	override("enable-metrics", flags.EnableMetrics, func() { res.EnableMetrics = true })
	override("shutdown-timeout", flags.ShutdownTimeout != 0, func() { res.ShutdownTimeout = flags.ShutdownTimeout })

	// a key given on the command line replaces the config file's key whichever form either of them uses
	override("private-key", flags.PrivateKey != "" || flags.PrivateKeyFile != "", func() {
		res.Keys.PrivateKey = flags.PrivateKey
		res.Keys.PrivateKeyFile = flags.PrivateKeyFile
	})
	override("peer-public-key", flags.PeerPublicKey != "" || flags.PeerPublicKeyFile != "", func() {
		res.Keys.PeerPublicKey = flags.PeerPublicKey
		res.Keys.PeerPublicKeyFile = flags.PeerPublicKeyFile
	})

	res.applyDefaults()

	if err := res.Validate(); err != nil {
		return res, err
	}

	return res, nil
}
