package envelope

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Wrap encrypts the hex encoded AES key under the peer's RSA public key using PKCS#1 v1.5 padding, returning the
// result base64 encoded.
func Wrap(keyHex string, peer *rsa.PublicKey) (string, error) {
	if peer == nil {
		return "", fmt.Errorf("%w: peer public key is not set", ErrConfig)
	}

	key, err := decodeKey(keyHex)
	if err != nil {
		return "", err
	}

	wrapped, err := rsa.EncryptPKCS1v15(rand.Reader, peer, key)
	if err != nil {
		return "", fmt.Errorf("%w: failed to encrypt AES key with RSA: %v", ErrCrypto, err)
	}

	return base64.StdEncoding.EncodeToString(wrapped), nil
}

// Unwrap reverses Wrap using the local RSA private key, returning the hex encoded AES key. It fails with ErrCrypto
// if the key was wrapped for a different recipient or the wrapped value was corrupted.
func Unwrap(wrappedB64 string, local *rsa.PrivateKey) (string, error) {
	if local == nil {
		return "", fmt.Errorf("%w: private key is not set", ErrConfig)
	}

	wrapped, err := base64.StdEncoding.DecodeString(wrappedB64)
	if err != nil {
		return "", fmt.Errorf("%w: wrapped key is not valid base64: %v", ErrCrypto, err)
	}

	key, err := rsa.DecryptPKCS1v15(nil, local, wrapped)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decrypt wrapped key: %v", ErrCrypto, err)
	}

	if len(key) != aesKeySize {
		return "", fmt.Errorf("%w: unwrapped key must be %d bytes, got %d bytes", ErrCrypto, aesKeySize, len(key))
	}

	return hex.EncodeToString(key), nil
}
