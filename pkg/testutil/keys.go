// Package testutil contains helpers shared by the tests of several packages.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// testKeySize matches the smallest key the envelope package accepts, to keep key generation cheap.
const testKeySize = 2048

var (
	testKeysOnce sync.Once
	serverKey    *rsa.PrivateKey
	clientKey    *rsa.PrivateKey
	strangerKey  *rsa.PrivateKey
)

func generateTestKeys() {
	testKeysOnce.Do(func() {
		keys := make([]*rsa.PrivateKey, 3)
		for i := range keys {
			key, err := rsa.GenerateKey(rand.Reader, testKeySize)
			if err != nil {
				panic("failed to generate test RSA key: " + err.Error())
			}
			keys[i] = key
		}
		serverKey, clientKey, strangerKey = keys[0], keys[1], keys[2]
	})
}

// ServerKey returns a singleton RSA private key playing the part of the server, to avoid generating a new key for
// each test.
func ServerKey() *rsa.PrivateKey {
	generateTestKeys()
	return serverKey
}

// ClientKey returns a singleton RSA private key playing the part of the browser client.
func ClientKey() *rsa.PrivateKey {
	generateTestKeys()
	return clientKey
}

// StrangerKey returns a singleton RSA private key that belongs to neither side of the exchange.
func StrangerKey() *rsa.PrivateKey {
	generateTestKeys()
	return strangerKey
}

// PrivateKeyPEM encodes key as a PKCS1 "RSA PRIVATE KEY" block.
func PrivateKeyPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// PublicKeyPEM encodes the public half of key as a PKIX "PUBLIC KEY" block.
func PublicKeyPEM(t testing.TB, key *rsa.PrivateKey) []byte {
	t.Helper()

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	})
}
