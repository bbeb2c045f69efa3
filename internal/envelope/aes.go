package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

const (
	// aesKeySize is the size of the AES-256 key in bytes; aes.NewCipher generates cipher.Block based
	// on the size of key passed in
	aesKeySize = 32
)

// zeroIV is the initialisation vector used for every message. The browser peer hardcodes it, so it can't change
// without changing both sides at once. It is only acceptable because every message is encrypted under a fresh key.
var zeroIV = make([]byte, aes.BlockSize)

// GenerateKey returns a new random AES-256 key, hex encoded. It is safe to call concurrently.
func GenerateKey() (string, error) {
	key := make([]byte, aesKeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("%w: failed to generate AES key: %v", ErrCrypto, err)
	}

	return hex.EncodeToString(key), nil
}

// Encrypt serialises payload to JSON and encrypts it with AES-256-CBC under the hex encoded key, returning the
// base64 encoded ciphertext. Encrypt is deterministic for a given key and payload.
func Encrypt(payload any, keyHex string) (string, error) {
	plaintext, err := marshalPayload(payload)
	if err != nil {
		return "", err
	}

	key, err := decodeKey(keyHex)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create AES cipher: %v", ErrCrypto, err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, zeroIV).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt, returning the JSON document that was encrypted.
func Decrypt(cipherB64 string, keyHex string) (json.RawMessage, error) {
	key, err := decodeKey(keyHex)
	if err != nil {
		return nil, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(cipherB64)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not valid base64: %v", ErrCrypto, err)
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a positive multiple of the AES block size", ErrCrypto, len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create AES cipher: %v", ErrCrypto, err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, zeroIV).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return nil, err
	}

	// encoding/json accepts invalid UTF-8 inside strings, so a garbled block could otherwise slip through as a
	// different but syntactically valid document.
	if !utf8.Valid(plaintext) || !json.Valid(plaintext) {
		return nil, fmt.Errorf("%w: decrypted payload is not valid JSON", ErrEncoding)
	}

	return json.RawMessage(plaintext), nil
}

// marshalPayload serialises the payload the same way JSON.stringify does in the browser: no HTML escaping and no
// trailing newline.
func marshalPayload(payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("%w: failed to serialise payload: %v", ErrEncoding, err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func decodeKey(keyHex string) ([]byte, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: AES key is not valid hex: %v", ErrCrypto, err)
	}

	if len(key) != aesKeySize {
		return nil, fmt.Errorf("%w: AES key must be %d bytes, got %d bytes", ErrCrypto, aesKeySize, len(key))
	}

	return key, nil
}
