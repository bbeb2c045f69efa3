package envelope

import "errors"

var (
	// ErrConfig is returned when required key material has not been configured.
	ErrConfig = errors.New("envelope: key material not configured")

	// ErrCrypto is returned when a key is malformed, padding is invalid, the wrapped key was produced for a different
	// recipient or any other cryptographic primitive fails. A message failing with ErrCrypto must not be trusted.
	ErrCrypto = errors.New("envelope: cryptographic failure")

	// ErrEncoding is returned when a payload cannot be serialised to JSON, or decrypted bytes are not valid JSON.
	ErrEncoding = errors.New("envelope: encoding failure")
)

// IsConfigError returns true if the error is or wraps ErrConfig.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}

// IsCryptoError returns true if the error is or wraps ErrCrypto.
func IsCryptoError(err error) bool {
	return errors.Is(err, ErrCrypto)
}

// IsEncodingError returns true if the error is or wraps ErrEncoding.
func IsEncodingError(err error) bool {
	return errors.Is(err, ErrEncoding)
}

// Class returns a short, stable name for the class of an envelope error, suitable for use as a metric label or log
// value. Errors which are not envelope errors are reported as "unknown".
func Class(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsConfigError(err):
		return "config_error"
	case IsCryptoError(err):
		return "crypto_error"
	case IsEncodingError(err):
		return "encoding_error"
	default:
		return "unknown"
	}
}
