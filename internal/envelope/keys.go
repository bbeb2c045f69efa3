package envelope

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

const (
	// minRSAKeySize is the minimum RSA key size in bits; we'd expect that keys will be larger but 2048 is a sane floor
	// to enforce to ensure that a weak key can't accidentally be used
	minRSAKeySize = 2048
)

// Keys holds the key material of one side of the exchange: its own RSA private key, used to unwrap keys sent to it,
// and the peer's RSA public key, used to wrap keys sent to the peer. Keys is loaded once at startup and never
// modified afterwards.
type Keys struct {
	PrivateKey    *rsa.PrivateKey
	PeerPublicKey *rsa.PublicKey
}

// ParseKeys parses PEM encoded key material into Keys. Missing material is reported as ErrConfig, malformed
// material as ErrCrypto.
func ParseKeys(privatePEM, peerPublicPEM []byte) (Keys, error) {
	if len(bytes.TrimSpace(privatePEM)) == 0 {
		return Keys{}, fmt.Errorf("%w: private key is empty", ErrConfig)
	}
	if len(bytes.TrimSpace(peerPublicPEM)) == 0 {
		return Keys{}, fmt.Errorf("%w: peer public key is empty", ErrConfig)
	}

	privateKey, err := LoadPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return Keys{}, fmt.Errorf("%w: private key: %v", ErrCrypto, err)
	}

	peerPublicKey, err := LoadPublicKeyFromPEM(peerPublicPEM)
	if err != nil {
		return Keys{}, fmt.Errorf("%w: peer public key: %v", ErrCrypto, err)
	}

	return Keys{
		PrivateKey:    privateKey,
		PeerPublicKey: peerPublicKey,
	}, nil
}

// LoadPublicKeyFromPEM parses an RSA public key from PEM-encoded bytes.
// The PEM block should be of type "PUBLIC KEY" or "RSA PUBLIC KEY".
func LoadPublicKeyFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	switch block.Type {
	case "PUBLIC KEY":
		pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKIX public key: %w", err)
		}

		rsaKey, ok := pubKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA public key, got %T", pubKey)
		}

		return rsaKey, nil
	case "RSA PUBLIC KEY":
		rsaKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS1 RSA public key: %w", err)
		}

		return rsaKey, nil
	}

	return nil, fmt.Errorf("unsupported PEM block type: %s (expected PUBLIC KEY or RSA PUBLIC KEY)", block.Type)
}

// LoadPrivateKeyFromPEM parses an RSA private key from PEM-encoded bytes.
// The PEM block should be of type "RSA PRIVATE KEY" (PKCS1) or "PRIVATE KEY" (PKCS8).
func LoadPrivateKeyFromPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS1 RSA private key: %w", err)
		}

		return rsaKey, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS8 private key: %w", err)
		}

		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA private key, got %T", key)
		}

		return rsaKey, nil
	}

	return nil, fmt.Errorf("unsupported PEM block type: %s (expected RSA PRIVATE KEY or PRIVATE KEY)", block.Type)
}

// GenerateKeyPairPEM creates a new RSA key pair, returning the private key as a PKCS1 "RSA PRIVATE KEY" block and
// the public key as a PKIX "PUBLIC KEY" block.
func GenerateKeyPairPEM(bits int) (privatePEM []byte, publicPEM []byte, err error) {
	if bits < minRSAKeySize {
		return nil, nil, fmt.Errorf("RSA key size must be at least %d bits, got %d bits", minRSAKeySize, bits)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate RSA key pair: %w", err)
	}

	pubASN1, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
	publicPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubASN1,
	})

	return privatePEM, publicPEM, nil
}

// PublicKeyPEM encodes the public half of key as a PKIX "PUBLIC KEY" block.
func PublicKeyPEM(key *rsa.PublicKey) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: public key is nil", ErrConfig)
	}

	pubASN1, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubASN1}), nil
}
