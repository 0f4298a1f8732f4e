package signing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"permit-portal/signing-backend/internal/capture"
	"permit-portal/signing-backend/internal/registry"
)

// MockRegistry is a mock implementation of the Registry interface
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Contains(identity string) (bool, error) {
	args := m.Called(identity)
	return args.Bool(0), args.Error(1)
}

func (m *MockRegistry) Record(identity string) error {
	args := m.Called(identity)
	return args.Error(0)
}

// MockComposer is a mock implementation of the Composer interface
type MockComposer struct {
	mock.Mock
}

func (m *MockComposer) Compose(source []byte, sig *capture.SignatureImage, displayName string) ([]byte, error) {
	args := m.Called(source, sig, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockMailer is a mock implementation of the Mailer interface
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, attachment []byte, filename, signerName string) error {
	args := m.Called(ctx, attachment, filename, signerName)
	return args.Error(0)
}

func drawnSignature(t *testing.T) *capture.SignatureImage {
	t.Helper()

	surface := capture.NewSurface()
	_, err := surface.Snapshot()
	require.NoError(t, err)
	surface.AddStroke([]capture.Point{{X: 40, Y: 60}, {X: 200, Y: 120}})

	sig, err := surface.Snapshot()
	require.NoError(t, err)
	require.False(t, sig.Blank())
	return sig
}

func blankSnapshot(t *testing.T) *capture.SignatureImage {
	t.Helper()

	surface := capture.NewSurface()
	sig, err := surface.Snapshot()
	require.NoError(t, err)
	return sig
}

var testSource = []byte("%PDF-source-template")

func newTestService(reg *MockRegistry, comp *MockComposer, mailer *MockMailer) Service {
	return NewService(testSource, "hunting_permit_signed.pdf", reg, comp, mailer, zap.NewNop())
}

func TestSubmitSuccess(t *testing.T) {
	reg := new(MockRegistry)
	comp := new(MockComposer)
	mailer := new(MockMailer)
	service := newTestService(reg, comp, mailer)

	signed := []byte("%PDF-signed")
	sig := drawnSignature(t)

	reg.On("Contains", "jane doe").Return(false, nil)
	comp.On("Compose", testSource, sig, "Jane Doe").Return(signed, nil)
	mailer.On("Send", mock.Anything, signed, "hunting_permit_signed.pdf", "Jane Doe").Return(nil)
	reg.On("Record", "jane doe").Return(nil)

	receipt, err := service.Submit(context.Background(), SubmitRequest{Name: "  Jane Doe  ", Signature: sig})

	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, "Jane Doe", receipt.SignerName)
	assert.Equal(t, "jane doe", receipt.Identity)
	assert.NotZero(t, receipt.ID)
	assert.False(t, receipt.CompletedAt.IsZero())

	reg.AssertExpectations(t)
	comp.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestSubmitMissingSignature(t *testing.T) {
	reg := new(MockRegistry)
	comp := new(MockComposer)
	mailer := new(MockMailer)
	service := newTestService(reg, comp, mailer)

	_, err := service.Submit(context.Background(), SubmitRequest{Name: "Jane Doe"})

	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, FailureMissingInput, pErr.Kind)

	reg.AssertNotCalled(t, "Contains", mock.Anything)
	comp.AssertNotCalled(t, "Compose", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitBlankSignature(t *testing.T) {
	reg := new(MockRegistry)
	comp := new(MockComposer)
	mailer := new(MockMailer)
	service := newTestService(reg, comp, mailer)

	_, err := service.Submit(context.Background(), SubmitRequest{
		Name:      "Jane Doe",
		Signature: blankSnapshot(t),
	})

	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, FailureMissingInput, pErr.Kind)
	comp.AssertNotCalled(t, "Compose", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitMissingName(t *testing.T) {
	reg := new(MockRegistry)
	comp := new(MockComposer)
	mailer := new(MockMailer)
	service := newTestService(reg, comp, mailer)

	_, err := service.Submit(context.Background(), SubmitRequest{
		Name:      "   ",
		Signature: drawnSignature(t),
	})

	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, FailureMissingInput, pErr.Kind)
}

func TestSubmitDuplicateShortCircuits(t *testing.T) {
	reg := new(MockRegistry)
	comp := new(MockComposer)
	mailer := new(MockMailer)
	service := newTestService(reg, comp, mailer)

	// "  JANE DOE  " normalizes to the identity recorded as "jane doe".
	reg.On("Contains", "jane doe").Return(true, nil)

	_, err := service.Submit(context.Background(), SubmitRequest{
		Name:      "  JANE DOE  ",
		Signature: drawnSignature(t),
	})

	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, FailureDuplicateSubmission, pErr.Kind)

	comp.AssertNotCalled(t, "Compose", mock.Anything, mock.Anything, mock.Anything)
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	reg.AssertNotCalled(t, "Record", mock.Anything)
}

func TestSubmitCompositionFailure(t *testing.T) {
	reg := new(MockRegistry)
	comp := new(MockComposer)
	mailer := new(MockMailer)
	service := newTestService(reg, comp, mailer)

	sig := drawnSignature(t)
	reg.On("Contains", "jane doe").Return(false, nil)
	comp.On("Compose", testSource, sig, "Jane Doe").Return(nil, errors.New("page index out of range"))

	_, err := service.Submit(context.Background(), SubmitRequest{Name: "Jane Doe", Signature: sig})

	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, FailureComposition, pErr.Kind)

	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	reg.AssertNotCalled(t, "Record", mock.Anything)
}

func TestSubmitDeliveryFailureLeavesRegistryUntouched(t *testing.T) {
	reg := new(MockRegistry)
	comp := new(MockComposer)
	mailer := new(MockMailer)
	service := newTestService(reg, comp, mailer)

	sig := drawnSignature(t)
	signed := []byte("%PDF-signed")
	reg.On("Contains", "john smith").Return(false, nil)
	comp.On("Compose", testSource, sig, "John Smith").Return(signed, nil)
	mailer.On("Send", mock.Anything, signed, "hunting_permit_signed.pdf", "John Smith").
		Return(errors.New("connection refused"))

	_, err := service.Submit(context.Background(), SubmitRequest{Name: "John Smith", Signature: sig})

	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, FailureDelivery, pErr.Kind)

	reg.AssertNotCalled(t, "Record", mock.Anything)
}

func TestSubmitRetryAfterDeliveryFailure(t *testing.T) {
	// A real registry: the first attempt fails at delivery, the retry
	// succeeds, and the identity ends up recorded exactly once.
	store := registry.NewFileStore(t.TempDir() + "/registered_signatures.json")
	comp := new(MockComposer)
	mailer := new(MockMailer)
	service := NewService(testSource, "hunting_permit_signed.pdf", store, comp, mailer, zap.NewNop())

	sig := drawnSignature(t)
	signed := []byte("%PDF-signed")
	comp.On("Compose", testSource, sig, "John Smith").Return(signed, nil)
	mailer.On("Send", mock.Anything, signed, "hunting_permit_signed.pdf", "John Smith").
		Return(errors.New("connection refused")).Once()

	_, err := service.Submit(context.Background(), SubmitRequest{Name: "John Smith", Signature: sig})
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	require.Equal(t, FailureDelivery, pErr.Kind)

	seen, err := store.Contains("john smith")
	require.NoError(t, err)
	assert.False(t, seen)

	mailer.On("Send", mock.Anything, signed, "hunting_permit_signed.pdf", "John Smith").
		Return(nil).Once()

	receipt, err := service.Submit(context.Background(), SubmitRequest{Name: "John Smith", Signature: sig})
	require.NoError(t, err)
	require.NotNil(t, receipt)

	entries, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"john smith"}, entries)
}

func TestConcurrentSameIdentitySubmissions(t *testing.T) {
	// Two simultaneous submissions under the same name: exactly one may
	// deliver and be recorded, the other must fail the duplicate check.
	store := registry.NewFileStore(t.TempDir() + "/registered_signatures.json")
	comp := new(MockComposer)
	mailer := new(MockMailer)
	service := NewService(testSource, "hunting_permit_signed.pdf", store, comp, mailer, zap.NewNop())

	sig := drawnSignature(t)
	signed := []byte("%PDF-signed")
	comp.On("Compose", testSource, sig, "Jane Doe").Return(signed, nil)
	mailer.On("Send", mock.Anything, signed, "hunting_permit_signed.pdf", "Jane Doe").Return(nil)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Submit(context.Background(), SubmitRequest{Name: "Jane Doe", Signature: sig})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, duplicates int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var pErr *Error
		require.ErrorAs(t, err, &pErr)
		require.Equal(t, FailureDuplicateSubmission, pErr.Kind)
		duplicates++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, duplicates)

	mailer.AssertNumberOfCalls(t, "Send", 1)
	entries, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"jane doe"}, entries)
}

func TestSubmitRecordFailureAfterDelivery(t *testing.T) {
	reg := new(MockRegistry)
	comp := new(MockComposer)
	mailer := new(MockMailer)
	service := newTestService(reg, comp, mailer)

	sig := drawnSignature(t)
	signed := []byte("%PDF-signed")
	reg.On("Contains", "jane doe").Return(false, nil)
	comp.On("Compose", testSource, sig, "Jane Doe").Return(signed, nil)
	mailer.On("Send", mock.Anything, signed, "hunting_permit_signed.pdf", "Jane Doe").Return(nil)
	reg.On("Record", "jane doe").Return(errors.New("disk full"))

	_, err := service.Submit(context.Background(), SubmitRequest{Name: "Jane Doe", Signature: sig})

	require.Error(t, err)
	var pErr *Error
	assert.False(t, errors.As(err, &pErr), "registry write failure is not a pipeline failure kind")
}

func TestSourceDocument(t *testing.T) {
	service := newTestService(new(MockRegistry), new(MockComposer), new(MockMailer))
	assert.Equal(t, testSource, service.SourceDocument())
}
