package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cinelist/watchlist/internal/envelope"
	"github.com/cinelist/watchlist/pkg/config"
)

// sealedDocument is the envelope with both halves in one JSON object, which is easier to pass around on the command
// line than a body and a header.
type sealedDocument struct {
	EncryptedData string `json:"encryptedData"`
	WrappedKey    string `json:"wrappedKey"`
}

var envelopeKeys config.Keys

var envelopeCmd = &cobra.Command{
	Use:   "envelope",
	Short: "seal and open envelopes by hand",
	Long: `Seal and open envelopes using the configured keys, reading from stdin and
writing to stdout. Useful when debugging a peer implementation.`,
}

var envelopeSealCmd = &cobra.Command{
	Use:   "seal",
	Short: "seal the JSON document on stdin for the peer",
	Example: `  echo '{"userId":"abc123"}' | watchlist envelope seal \
    --private-key-file keys/client.pem --peer-public-key-file keys/server.pub.pem`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := envelopeCodec()
		if err != nil {
			return err
		}
		return sealDocument(codec, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var envelopeOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "open the sealed document on stdin",
	Example: `  watchlist envelope open --private-key-file keys/server.pem \
    --peer-public-key-file keys/client.pub.pem < sealed.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := envelopeCodec()
		if err != nil {
			return err
		}
		return openDocument(codec, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(envelopeCmd)
	envelopeCmd.AddCommand(envelopeSealCmd, envelopeOpenCmd)
	addKeyFlags(envelopeCmd, &envelopeKeys)
}

// addKeyFlags registers the key flags shared by the commands acting as one side of the exchange.
func addKeyFlags(c *cobra.Command, keys *config.Keys) {
	c.PersistentFlags().StringVar(&keys.PrivateKey, "private-key", "", "This side's RSA private key as PEM.")
	c.PersistentFlags().StringVar(&keys.PrivateKeyFile, "private-key-file", "", "Path to this side's RSA private key.")
	c.PersistentFlags().StringVar(&keys.PeerPublicKey, "peer-public-key", "", "The peer's RSA public key as PEM.")
	c.PersistentFlags().StringVar(&keys.PeerPublicKeyFile, "peer-public-key-file", "", "Path to the peer's RSA public key.")
}

func envelopeCodec() (*envelope.Codec, error) {
	keys, err := envelopeKeys.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load keys: %w", err)
	}
	return envelope.NewCodec(keys)
}

func sealDocument(codec *envelope.Codec, in io.Reader, out io.Writer) error {
	var payload json.RawMessage
	if err := json.NewDecoder(in).Decode(&payload); err != nil {
		return fmt.Errorf("%w: stdin is not a JSON document: %v", envelope.ErrEncoding, err)
	}

	env, err := codec.Seal(payload)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(sealedDocument{EncryptedData: env.CipherBody, WrappedKey: env.WrappedKey})
}

func openDocument(codec *envelope.Codec, in io.Reader, out io.Writer) error {
	var doc sealedDocument
	if err := json.NewDecoder(in).Decode(&doc); err != nil {
		return fmt.Errorf("%w: stdin is not a sealed document: %v", envelope.ErrEncoding, err)
	}

	payload, err := codec.Open(envelope.Envelope{CipherBody: doc.EncryptedData, WrappedKey: doc.WrappedKey})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, string(payload))
	return err
}
