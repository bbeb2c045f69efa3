package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cinelist/watchlist/pkg/logs"
)

// envPrefix is prepended to the upper-cased flag name to find a flag's environment variable, e.g.
// --peer-public-key-file can be set with WATCHLIST_PEER_PUBLIC_KEY_FILE.
const envPrefix = "WATCHLIST_"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Movie watchlist server with end-to-end encrypted request bodies",
	Long: `watchlist serves the movie watchlist API.

Request and response bodies exchanged with the browser client are sealed in an
envelope on top of HTTPS: each body is encrypted with a fresh AES-256 key, and
that key travels RSA-encrypted in the X-Encrypted-Key header.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setFlagsFromEnv(envPrefix, cmd.Flags())
		return logs.Initialize()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	logs.AddFlags(rootCmd.PersistentFlags())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setFlagsFromEnv(prefix string, fs *pflag.FlagSet) {
	set := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) {
		set[f.Name] = true
	})
	fs.VisitAll(func(f *pflag.Flag) {
		// ignore flags set from the commandline
		if set[f.Name] {
			return
		}
		// remove trailing _ to reduce common errors with the prefix, i.e. people setting it to MY_PROG_
		cleanPrefix := strings.TrimSuffix(prefix, "_")
		name := fmt.Sprintf("%s_%s", cleanPrefix, strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_"))
		if e, ok := os.LookupEnv(name); ok {
			_ = fs.Set(f.Name, e)
		}
	})
}
