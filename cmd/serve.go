package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/cinelist/watchlist/internal/envelope"
	"github.com/cinelist/watchlist/pkg/config"
	"github.com/cinelist/watchlist/pkg/logs"
	"github.com/cinelist/watchlist/pkg/server"
)

var serveFlags config.ServeFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the watchlist API server",
	Long: `Start the watchlist API server.

The server's private key and the browser client's public key are required;
the server refuses to start without them.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	config.InitServeCmdFlags(serveCmd, &serveFlags)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := klog.Background().WithName("serve")
	ctx = klog.NewContext(ctx, log)

	var fileCfg config.Config
	if serveFlags.ConfigFilePath != "" {
		data, err := os.ReadFile(serveFlags.ConfigFilePath)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if fileCfg, err = config.Decode(data); err != nil {
			return err
		}
	}

	cfg, err := config.ValidateAndCombineConfig(log, fileCfg, serveFlags)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if dump, err := cfg.Dump(); err == nil {
		log.V(logs.Debug).Info("Loaded configuration", "config", dump)
	}

	keys, err := cfg.Keys.Load()
	if err != nil {
		return fmt.Errorf("failed to load keys: %w", err)
	}

	codec, err := envelope.NewCodec(keys)
	if err != nil {
		return fmt.Errorf("failed to load keys: %w", err)
	}

	srv, err := server.New(cfg, codec)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
