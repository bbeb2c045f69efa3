package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cinelist/watchlist/internal/envelope"
)

var keygenFlags struct {
	name   string
	outDir string
	bits   int
	force  bool
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "generate an RSA key pair for one side of the exchange",
	Long: `Generate an RSA key pair and write it as <name>.pem (private, PKCS1)
and <name>.pub.pem (public, PKIX) in the output directory.

Run it once for the server and once for the browser client. The server needs
server.pem and client.pub.pem; the client needs client.pem and server.pub.pem.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		privatePath, publicPath, err := writeKeyPair(keygenFlags.outDir, keygenFlags.name, keygenFlags.bits, keygenFlags.force)
		if err != nil {
			return err
		}

		color.Green("✓ Generated %d bit RSA key pair\n", keygenFlags.bits)
		fmt.Printf("  private key: %s\n", color.YellowString(privatePath))
		fmt.Printf("  public key:  %s\n", color.CyanString(publicPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVar(&keygenFlags.name, "name", "server", "Base name of the key files.")
	keygenCmd.Flags().StringVar(&keygenFlags.outDir, "out-dir", "keys", "Directory to write the key files to.")
	keygenCmd.Flags().IntVar(&keygenFlags.bits, "bits", 2048, "RSA key size in bits, at least 2048.")
	keygenCmd.Flags().BoolVar(&keygenFlags.force, "force", false, "Overwrite existing key files.")
}

func writeKeyPair(dir, name string, bits int, force bool) (string, string, error) {
	if name == "" {
		return "", "", fmt.Errorf("--name must not be empty")
	}

	privatePath := filepath.Join(dir, name+".pem")
	publicPath := filepath.Join(dir, name+".pub.pem")

	if !force {
		for _, p := range []string{privatePath, publicPath} {
			if _, err := os.Stat(p); err == nil {
				return "", "", fmt.Errorf("%s already exists, use --force to overwrite it", p)
			}
		}
	}

	privatePEM, publicPEM, err := envelope.GenerateKeyPairPEM(bits)
	if err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.WriteFile(privatePath, privatePEM, 0o600); err != nil {
		return "", "", fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(publicPath, publicPEM, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write public key: %w", err)
	}

	return privatePath, publicPath, nil
}
