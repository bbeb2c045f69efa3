package envelope

// Envelope is the unit produced by one Seal call. The two fields are only meaningful together and must travel in the
// same message; nothing binds them cryptographically.
type Envelope struct {
	// CipherBody is the base64 AES-256-CBC ciphertext of the JSON payload. It is the only field of the HTTP body.
	CipherBody string `json:"encryptedData"`

	// WrappedKey is the base64 RSA PKCS#1 v1.5 encryption of the AES key. It travels in a header, not the body.
	WrappedKey string `json:"-"`
}

// Complete reports whether both halves of the envelope are present.
func (e Envelope) Complete() bool {
	return e.CipherBody != "" && e.WrappedKey != ""
}
