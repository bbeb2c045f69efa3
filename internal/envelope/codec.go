package envelope

import (
	"encoding/json"
	"fmt"
)

// Codec seals payloads for the peer and opens envelopes sent by the peer. It holds no state beyond the read-only
// key material, so a single Codec is safe for concurrent use.
type Codec struct {
	keys Keys
}

// NewCodec creates a new Codec with the provided keys. Both keys are required, and each RSA key must be at least
// minRSAKeySize bits, so that a misconfigured process fails at startup rather than on its first request.
func NewCodec(keys Keys) (*Codec, error) {
	if keys.PrivateKey == nil {
		return nil, fmt.Errorf("%w: private key cannot be nil", ErrConfig)
	}

	if keys.PeerPublicKey == nil {
		return nil, fmt.Errorf("%w: peer public key cannot be nil", ErrConfig)
	}

	if size := keys.PrivateKey.N.BitLen(); size < minRSAKeySize {
		return nil, fmt.Errorf("%w: RSA private key size must be at least %d bits, got %d bits", ErrCrypto, minRSAKeySize, size)
	}

	if size := keys.PeerPublicKey.N.BitLen(); size < minRSAKeySize {
		return nil, fmt.Errorf("%w: RSA peer public key size must be at least %d bits, got %d bits", ErrCrypto, minRSAKeySize, size)
	}

	return &Codec{
		keys: keys,
	}, nil
}

// Keys returns the key material the codec was created with.
func (c *Codec) Keys() Keys {
	return c.keys
}

// Seal encrypts payload for the peer under a freshly generated AES key and wraps that key with the peer's public
// key. Either both fields of the returned Envelope are set, or an error is returned.
func (c *Codec) Seal(payload any) (Envelope, error) {
	key, err := GenerateKey()
	if err != nil {
		return Envelope{}, err
	}

	cipherBody, err := Encrypt(payload, key)
	if err != nil {
		return Envelope{}, err
	}

	wrappedKey, err := Wrap(key, c.keys.PeerPublicKey)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		CipherBody: cipherBody,
		WrappedKey: wrappedKey,
	}, nil
}

// Open unwraps the envelope's key with the local private key and decrypts the cipher body with it. If the key can't
// be unwrapped, decryption is never attempted.
func (c *Codec) Open(env Envelope) (json.RawMessage, error) {
	key, err := Unwrap(env.WrappedKey, c.keys.PrivateKey)
	if err != nil {
		return nil, err
	}

	return Decrypt(env.CipherBody, key)
}

// OpenAs opens the envelope and decodes the payload into a value of type T.
func OpenAs[T any](c *Codec, env Envelope) (T, error) {
	var out T

	payload, err := c.Open(env)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("%w: failed to decode payload into %T: %v", ErrEncoding, out, err)
	}

	return out, nil
}
