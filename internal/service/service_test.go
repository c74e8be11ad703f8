package service

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Elias8833/webmonetization/internal/embed"
	"github.com/Elias8833/webmonetization/internal/exclusive"
	"github.com/Elias8833/webmonetization/internal/metrics"
	"github.com/Elias8833/webmonetization/internal/models"
	"github.com/Elias8833/webmonetization/internal/storage"
)

func newTestService(t *testing.T) (*Service, *metrics.Metrics) {
	t.Helper()
	return newTestServiceWithStore(t, storage.NewMemoryStorage(time.Hour, nil))
}

func newTestServiceWithStore(t *testing.T, store *storage.MemoryStorage) (*Service, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry(), func() float64 { return float64(store.Live()) })
	return NewService(
		exclusive.NewGenerator(),
		embed.NewRenderer(""),
		store,
		m,
		zap.NewNop(),
	), m
}

// rejectingStore refuses every write
type rejectingStore struct {
	*storage.MemoryStorage
}

func (rejectingStore) Store(*models.ExclusiveContent) error {
	return storage.ErrExists
}

func testRequest() models.GenerationRequest {
	return models.GenerationRequest{
		PaymentPointer: "$wallet.example/alice",
		VerifierURL:    "https://v.example.com",
		Plaintext:      "Hello World",
	}
}

func TestGenerateStoresResult(t *testing.T) {
	svc, m := newTestService(t)

	content, err := svc.Generate(context.Background(), models.GenerationRequest{
		PaymentPointer: "  $wallet.example/alice ",
		VerifierURL:    "https://v.example.com",
		Plaintext:      "Hello World",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, content.ID)
	assert.Equal(t, "$wallet.example/alice", content.PaymentPointer)
	assert.Equal(t, "https://v.example.com/%24wallet.example%2Falice", content.ProxyPaymentPointer)
	assert.True(t, strings.Contains(content.Script, content.Payload.CipherText))
	assert.Contains(t, content.Script, `receipt: "",`)

	got, err := svc.Get(content.ID)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	script, err := svc.Script(content.ID)
	require.NoError(t, err)
	assert.Equal(t, content.Script, script)

	total, _ := svc.Stats()
	assert.Equal(t, 1, total)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Generations.WithLabelValues(metrics.ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Stored))
}

func TestGenerateValidation(t *testing.T) {
	svc, m := newTestService(t)

	_, err := svc.Generate(context.Background(), models.GenerationRequest{
		PaymentPointer: "   ",
		VerifierURL:    "https://v.example.com",
		Plaintext:      "Hello World",
	})
	assert.ErrorIs(t, err, models.ErrMissingField)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Generations.WithLabelValues(metrics.ResultError)))

	total, _ := svc.Stats()
	assert.Equal(t, 0, total)
}

func TestGenerateCancelledContext(t *testing.T) {
	svc, _ := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Generate(ctx, models.GenerationRequest{
		PaymentPointer: "$wallet.example/alice",
		VerifierURL:    "https://v.example.com",
		Plaintext:      "Hello World",
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetUnknown(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get("not-a-uuid")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.Script("6f1c1c7e-4b9a-4a43-8a0f-9a8c1f4f2b11")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDecrypt(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	content, err := svc.Generate(ctx, models.GenerationRequest{
		PaymentPointer: "$wallet.example/alice",
		VerifierURL:    "https://v.example.com/",
		Plaintext:      "<p>members only</p>",
	})
	require.NoError(t, err)

	plaintext, err := svc.Decrypt(ctx, models.DecryptRequest{
		PaymentPointer: "$wallet.example/alice",
		Payload:        content.Payload,
	})
	require.NoError(t, err)
	assert.Equal(t, "<p>members only</p>", plaintext)

	_, err = svc.Decrypt(ctx, models.DecryptRequest{
		PaymentPointer: "$wallet.example/mallory",
		Payload:        content.Payload,
	})
	assert.ErrorIs(t, err, exclusive.ErrVerifierMismatch)

	_, err = svc.Decrypt(ctx, models.DecryptRequest{
		PaymentPointer: "$wallet.example/alice",
	})
	assert.ErrorIs(t, err, exclusive.ErrMalformedPayload)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decrypts.WithLabelValues(metrics.ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decrypts.WithLabelValues(metrics.ResultMismatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decrypts.WithLabelValues(metrics.ResultMalformed)))
}

func TestGenerateStoreFailureCountsAsError(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry(), func() float64 { return 0 })
	svc := NewService(
		exclusive.NewGenerator(),
		embed.NewRenderer(""),
		rejectingStore{storage.NewMemoryStorage(time.Hour, nil)},
		m,
		zap.NewNop(),
	)

	_, err := svc.Generate(context.Background(), testRequest())
	assert.ErrorIs(t, err, storage.ErrExists)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Generations.WithLabelValues(metrics.ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Generations.WithLabelValues(metrics.ResultError)))
}

func TestStoredGaugeDropsAfterExpiry(t *testing.T) {
	store := storage.NewMemoryStorage(200*time.Millisecond, nil)
	svc, m := newTestServiceWithStore(t, store)

	_, err := svc.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Stored))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Stored) == 0
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, 1, store.Cleanup())
	total, _ := svc.Stats()
	assert.Equal(t, 0, total)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Stored))
}

func TestDelete(t *testing.T) {
	svc, m := newTestService(t)

	content, err := svc.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Stored))

	require.NoError(t, svc.Delete(content.ID))
	_, err = svc.Get(content.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Stored))

	assert.ErrorIs(t, svc.Delete(content.ID), storage.ErrNotFound)
	assert.ErrorIs(t, svc.Delete("not-a-uuid"), storage.ErrNotFound)
}

func TestDecryptTamperedCiphertextIsMalformed(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	content, err := svc.Generate(ctx, testRequest())
	require.NoError(t, err)

	payload := content.Payload
	raw, err := base64.StdEncoding.DecodeString(payload.CipherText)
	require.NoError(t, err)
	raw[0] ^= 0xff
	payload.CipherText = base64.StdEncoding.EncodeToString(raw)

	_, err = svc.Decrypt(ctx, models.DecryptRequest{
		PaymentPointer: "$wallet.example/alice",
		Payload:        payload,
	})
	assert.ErrorIs(t, err, exclusive.ErrDecrypt)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decrypts.WithLabelValues(metrics.ResultMalformed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Decrypts.WithLabelValues(metrics.ResultError)))
}
