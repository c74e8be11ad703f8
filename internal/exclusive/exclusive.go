package exclusive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"

	"github.com/Elias8833/webmonetization/internal/models"
)

const (
	// KeySize is the AES-256 key length produced by DeriveKey
	KeySize = 32
	// NonceSize is the length of the random seed mixed into key derivation
	NonceSize = 16
	// IVSize is the AES-GCM initialization vector length
	IVSize = 12
)

var (
	hkdfInfo      = []byte("webmonetization.exclusive-content.v1")
	verifierLabel = []byte("cipher-verifier")
)

var (
	ErrEntropy          = errors.New("random source unavailable")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrVerifierMismatch = errors.New("cipher verifier mismatch")
	ErrDecrypt          = errors.New("decryption failed")
)

// Generator turns generation requests into encrypted payloads
type Generator struct {
	random io.Reader
	logger *zap.Logger
}

// Option configures a Generator
type Option func(*Generator)

// WithRandom replaces crypto/rand as the source of nonces and IVs
func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		g.random = r
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator creates a generator reading from crypto/rand
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		random: rand.Reader,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate encrypts req.Plaintext under a key derived from the payment pointer,
// a fresh nonce and the empty receipt placeholder that the embed script starts with.
func (g *Generator) Generate(req models.GenerationRequest) (models.EncryptedPayload, error) {
	if err := req.Validate(); err != nil {
		return models.EncryptedPayload{}, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(g.random, nonce); err != nil {
		return models.EncryptedPayload{}, fmt.Errorf("%w: generating nonce: %v", ErrEntropy, err)
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(g.random, iv); err != nil {
		return models.EncryptedPayload{}, fmt.Errorf("%w: generating iv: %v", ErrEntropy, err)
	}

	key, err := DeriveKey(req.PaymentPointer, "", nonce)
	if err != nil {
		return models.EncryptedPayload{}, err
	}
	defer clear(key)

	aead, err := newAEAD(key)
	if err != nil {
		return models.EncryptedPayload{}, err
	}

	// nonce doubles as AAD
	ciphertext := aead.Seal(nil, iv, []byte(req.Plaintext), nonce)

	g.logger.Debug("generated exclusive content",
		zap.Int("plaintext_bytes", len(req.Plaintext)),
		zap.Int("ciphertext_bytes", len(ciphertext)))

	return models.EncryptedPayload{
		Nonce:                base64.StdEncoding.EncodeToString(nonce),
		CipherText:           base64.StdEncoding.EncodeToString(ciphertext),
		CipherVerifier:       base64.StdEncoding.EncodeToString(cipherVerifier(key, nonce)),
		InitializationVector: base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// DeriveKey derives the content key with HKDF-SHA256 over the length-prefixed
// payment pointer and receipt, salted with the nonce.
func DeriveKey(paymentPointer, receipt string, nonce []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", ErrMalformedPayload, NonceSize, len(nonce))
	}

	// Each input carries a uint32 big-endian length so no pointer/receipt split collides.
	ikm := make([]byte, 0, 8+len(paymentPointer)+len(receipt))
	ikm = binary.BigEndian.AppendUint32(ikm, uint32(len(paymentPointer)))
	ikm = append(ikm, paymentPointer...)
	ikm = binary.BigEndian.AppendUint32(ikm, uint32(len(receipt)))
	ikm = append(ikm, receipt...)

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nonce, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Verify checks that paymentPointer and receipt derive the key the payload was sealed with
func Verify(payload models.EncryptedPayload, paymentPointer, receipt string) error {
	d, err := decode(payload)
	if err != nil {
		return err
	}
	key, err := DeriveKey(paymentPointer, receipt, d.nonce)
	if err != nil {
		return err
	}
	defer clear(key)

	return checkVerifier(key, d)
}

// Decrypt recovers the plaintext once the verifier confirms the derived key
func Decrypt(payload models.EncryptedPayload, paymentPointer, receipt string) (string, error) {
	d, err := decode(payload)
	if err != nil {
		return "", err
	}
	key, err := DeriveKey(paymentPointer, receipt, d.nonce)
	if err != nil {
		return "", err
	}
	defer clear(key)

	if err := checkVerifier(key, d); err != nil {
		return "", err
	}

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	plaintext, err := aead.Open(nil, d.iv, d.ciphertext, d.nonce)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plaintext), nil
}

type decodedPayload struct {
	nonce      []byte
	iv         []byte
	ciphertext []byte
	verifier   []byte
}

func decode(payload models.EncryptedPayload) (*decodedPayload, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var (
		d   decodedPayload
		err error
	)
	if d.nonce, err = decodeField("nonce", payload.Nonce); err != nil {
		return nil, err
	}
	if d.iv, err = decodeField("initializationVector", payload.InitializationVector); err != nil {
		return nil, err
	}
	if d.ciphertext, err = decodeField("cipherText", payload.CipherText); err != nil {
		return nil, err
	}
	if d.verifier, err = decodeField("cipherVerifier", payload.CipherVerifier); err != nil {
		return nil, err
	}

	if len(d.iv) != IVSize {
		return nil, fmt.Errorf("%w: initializationVector must be %d bytes, got %d", ErrMalformedPayload, IVSize, len(d.iv))
	}
	return &d, nil
}

func decodeField(name, value string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be valid base64", ErrMalformedPayload, name)
	}
	return raw, nil
}

func checkVerifier(key []byte, d *decodedPayload) error {
	if !hmac.Equal(cipherVerifier(key, d.nonce), d.verifier) {
		return ErrVerifierMismatch
	}
	return nil
}

func cipherVerifier(key, nonce []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(verifierLabel)
	mac.Write(nonce)
	return mac.Sum(nil)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
