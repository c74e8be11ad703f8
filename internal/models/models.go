package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrMissingField is returned when a required input is empty
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidEncoding is returned when an input is not valid UTF-8
	ErrInvalidEncoding = errors.New("input is not valid UTF-8")
)

// GenerationRequest represents the three user inputs of the generate form
type GenerationRequest struct {
	PaymentPointer string `json:"paymentPointer" binding:"required"`
	VerifierURL    string `json:"verifierUrl" binding:"required"`
	Plaintext      string `json:"plaintext" binding:"required"`
}

// Normalize trims surrounding whitespace from the pointer and verifier.
// Plaintext is content and is kept verbatim.
func (req *GenerationRequest) Normalize() {
	req.PaymentPointer = strings.TrimSpace(req.PaymentPointer)
	req.VerifierURL = strings.TrimSpace(req.VerifierURL)
}

// Validate checks that every field is present and valid UTF-8
func (req *GenerationRequest) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"paymentPointer", req.PaymentPointer},
		{"verifierUrl", req.VerifierURL},
		{"plaintext", req.Plaintext},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
		if !utf8.ValidString(f.value) {
			return fmt.Errorf("%w: %s", ErrInvalidEncoding, f.name)
		}
	}
	return nil
}

// EncryptedPayload is the output of one generation. All fields are standard base64.
type EncryptedPayload struct {
	Nonce                string `json:"nonce"`
	CipherText           string `json:"cipherText"`
	CipherVerifier       string `json:"cipherVerifier"`
	InitializationVector string `json:"initializationVector"`
}

// Validate checks that every field is present
func (p *EncryptedPayload) Validate() error {
	switch {
	case p.Nonce == "":
		return fmt.Errorf("%w: nonce", ErrMissingField)
	case p.CipherText == "":
		return fmt.Errorf("%w: cipherText", ErrMissingField)
	case p.CipherVerifier == "":
		return fmt.Errorf("%w: cipherVerifier", ErrMissingField)
	case p.InitializationVector == "":
		return fmt.Errorf("%w: initializationVector", ErrMissingField)
	}
	return nil
}

// ExclusiveContent is a generated result held by the content store
type ExclusiveContent struct {
	ID                  string           `json:"id"`
	PaymentPointer      string           `json:"paymentPointer"`
	VerifierURL         string           `json:"verifierUrl"`
	ProxyPaymentPointer string           `json:"proxyPaymentPointer"`
	Payload             EncryptedPayload `json:"payload"`
	Script              string           `json:"script"`
	CreatedAt           time.Time        `json:"createdAt"`
}

// DecryptRequest is what a consuming page holds once a receipt has been observed
type DecryptRequest struct {
	PaymentPointer string           `json:"paymentPointer" binding:"required"`
	Receipt        string           `json:"receipt"`
	Payload        EncryptedPayload `json:"payload"`
}

// DecryptResponse carries the recovered content
type DecryptResponse struct {
	Plaintext string `json:"plaintext"`
}

// HealthResponse represents the health check body
type HealthResponse struct {
	Status         string `json:"status"`
	ContentStored  int    `json:"content_stored"`
	ContentExpired int    `json:"content_expired"`
	Timestamp      string `json:"timestamp"`
}

// APIError represents RESTful error response structure
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Common error codes
const (
	ErrorCodeInvalidRequest   = "INVALID_REQUEST"
	ErrorCodeValidationFailed = "VALIDATION_FAILED"
	ErrorCodeNotFound         = "NOT_FOUND"
	ErrorCodeVerifierMismatch = "VERIFIER_MISMATCH"
	ErrorCodeInternalError    = "INTERNAL_ERROR"
)
