package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Elias8833/webmonetization/internal/embed"
	"github.com/Elias8833/webmonetization/internal/exclusive"
	"github.com/Elias8833/webmonetization/internal/metrics"
	"github.com/Elias8833/webmonetization/internal/models"
	"github.com/Elias8833/webmonetization/internal/storage"
)

// Store is the persistence the service needs for generated results
type Store interface {
	Store(content *models.ExclusiveContent) error
	Get(id string) (*models.ExclusiveContent, error)
	Delete(id string) error
	Stats() (int, int)
}

// Service generates, keeps and checks exclusive content
type Service struct {
	generator *exclusive.Generator
	renderer  *embed.Renderer
	store     Store
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewService wires the generator, renderer and store together
func NewService(
	generator *exclusive.Generator,
	renderer *embed.Renderer,
	store Store,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		generator: generator,
		renderer:  renderer,
		store:     store,
		metrics:   m,
		logger:    logger,
	}
}

// Generate encrypts the plaintext, renders the embed script and keeps the result
func (s *Service) Generate(ctx context.Context, req models.GenerationRequest) (*models.ExclusiveContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req.Normalize()
	content, err := s.generate(req)
	if err == nil {
		if err = s.store.Store(content); err != nil {
			err = fmt.Errorf("failed to store content: %w", err)
		}
	}
	s.metrics.RecordGeneration(err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("generated exclusive content",
		zap.String("id", content.ID),
		zap.String("payment_pointer", content.PaymentPointer))

	return content, nil
}

func (s *Service) generate(req models.GenerationRequest) (*models.ExclusiveContent, error) {
	payload, err := s.generator.Generate(req)
	if err != nil {
		return nil, err
	}

	script, err := s.renderer.Render(req, payload)
	if err != nil {
		return nil, err
	}

	return &models.ExclusiveContent{
		ID:                  uuid.NewString(),
		PaymentPointer:      req.PaymentPointer,
		VerifierURL:         req.VerifierURL,
		ProxyPaymentPointer: embed.ProxyPaymentPointer(req.VerifierURL, req.PaymentPointer),
		Payload:             payload,
		Script:              script,
		CreatedAt:           time.Now().UTC(),
	}, nil
}

// Get returns a previously generated result
func (s *Service) Get(id string) (*models.ExclusiveContent, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, storage.ErrNotFound
	}
	return s.store.Get(id)
}

// Script returns the embed script of a previously generated result
func (s *Service) Script(id string) (string, error) {
	content, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return content.Script, nil
}

// Delete discards a previously generated result
func (s *Service) Delete(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return storage.ErrNotFound
	}
	if err := s.store.Delete(id); err != nil {
		return err
	}

	s.logger.Info("deleted exclusive content", zap.String("id", id))
	return nil
}

// Decrypt runs the consumer side of the protocol: confirm the derived key
// against the cipher verifier, then open the ciphertext.
func (s *Service) Decrypt(ctx context.Context, req models.DecryptRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	plaintext, err := exclusive.Decrypt(req.Payload, req.PaymentPointer, req.Receipt)
	s.metrics.RecordDecrypt(decryptResult(err))
	if err != nil {
		s.logger.Debug("decrypt rejected",
			zap.String("payment_pointer", req.PaymentPointer),
			zap.Error(err))
		return "", err
	}
	return plaintext, nil
}

// Stats reports stored and expired result counts
func (s *Service) Stats() (int, int) {
	return s.store.Stats()
}

func decryptResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, exclusive.ErrVerifierMismatch):
		return metrics.ResultMismatch
	case errors.Is(err, exclusive.ErrMalformedPayload), errors.Is(err, exclusive.ErrDecrypt):
		return metrics.ResultMalformed
	default:
		return metrics.ResultError
	}
}
