// Package binding maps envelopes produced by the envelope package onto HTTP messages.
//
// A sealed message carries the cipher body as the only field of a JSON object, and the wrapped key in a header:
//
//	X-Encrypted-Key: <base64 wrapped key>
//
//	{"encryptedData":"<base64 ciphertext>"}
//
// On the server, DecryptRequests opens sealed request bodies before they reach application handlers and
// EncryptResponses seals JSON responses on the way out. On the client, Transport does the reverse. Encryption is
// opportunistic: a request without both halves of an envelope reaches the handler untouched.
package binding
