// Package envelope implements the RSA envelope encryption used to protect request and response bodies exchanged between
// the watchlist browser client and the server, independently of TLS. This protects against threats such as TLS
// interception middleware.
//
// Envelope encryption uses a combination of asymmetric encryption and symmetric encryption; since asymmetric encryption is
// slow and has size limits, we generate a random symmetric key for each message, use that to encrypt the JSON payload,
// then encrypt the symmetric key with the peer's RSA public key. The peer uses its RSA private key to recover the
// symmetric key, then uses that to decrypt the payload.
//
// The scheme is fixed by the existing browser peer: RSA PKCS#1 v1.5 for the key wrap and AES-256-CBC with an all-zero IV
// and PKCS#7 padding for the payload. Neither side authenticates the ciphertext. Because the symmetric key is never
// reused, the fixed IV does not leak equality between messages, but the scheme should not be reused elsewhere and must
// be changed on both peers at once if it is ever upgraded.
//
// In some documentation, the asymmetric key is called the "key encryption key" (KEK) and the symmetric key is called the "data encryption key" (DEK).
package envelope
