package envelope

import (
	"bytes"
	"fmt"
)

// pkcs7Pad pads b to a multiple of blockSize. A full block of padding is added when b is already aligned, so the
// output is never the same length as the input.
func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - (len(b) % blockSize)
	padded := make([]byte, len(b)+n)
	copy(padded, b)
	copy(padded[len(b):], bytes.Repeat([]byte{byte(n)}, n))
	return padded
}

// pkcs7Unpad strips PKCS#7 padding from b. Invalid padding almost always means the wrong key was used or the
// ciphertext was modified in transit.
func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, fmt.Errorf("%w: padded data length %d is not a positive multiple of %d", ErrCrypto, len(b), blockSize)
	}

	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, fmt.Errorf("%w: invalid padding", ErrCrypto)
	}

	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: invalid padding", ErrCrypto)
		}
	}

	return b[:len(b)-n], nil
}
