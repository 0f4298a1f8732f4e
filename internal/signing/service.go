package signing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"permit-portal/signing-backend/internal/capture"
	"permit-portal/signing-backend/internal/registry"
)

// Registry is the duplicate-submission guard. Contains is consulted before
// any work; Record is called only after delivery succeeds.
type Registry interface {
	Contains(identity string) (bool, error)
	Record(identity string) error
}

// Composer produces the signed document bytes.
type Composer interface {
	Compose(source []byte, sig *capture.SignatureImage, displayName string) ([]byte, error)
}

// Mailer delivers the signed document as an email attachment.
type Mailer interface {
	Send(ctx context.Context, attachment []byte, filename, signerName string) error
}

// SubmitRequest carries one user-triggered submission.
type SubmitRequest struct {
	Name      string
	Signature *capture.SignatureImage
}

// Service runs the signing pipeline and serves the source permit.
type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*Receipt, error)
	SourceDocument() []byte
}

type pipeline struct {
	source         []byte
	attachmentName string
	registry       Registry
	composer       Composer
	mailer         Mailer
	sm             *StateMachine
	logger         *zap.Logger

	// mu serializes whole submissions. The duplicate check and the
	// post-delivery record must not interleave across concurrent requests,
	// or two submissions under the same identity could both pass the check
	// and both deliver.
	mu sync.Mutex
}

// NewService wires the signing pipeline. source is the immutable permit
// template, shared by all submissions and never mutated; attachmentName is
// the filename the signed copy is delivered under.
func NewService(source []byte, attachmentName string, reg Registry, comp Composer, mailer Mailer, logger *zap.Logger) Service {
	return &pipeline{
		source:         source,
		attachmentName: attachmentName,
		registry:       reg,
		composer:       comp,
		mailer:         mailer,
		sm:             NewStateMachine(),
		logger:         logger,
	}
}

func (p *pipeline) SourceDocument() []byte {
	return p.source
}

// Submit sequences validation, duplicate check, composition, delivery, and
// recording. Recording happens strictly after delivery success: a signer is
// never locked out by a transient mail failure, and no signer completes two
// successful deliveries. Submissions run one at a time.
func (p *pipeline) Submit(ctx context.Context, req SubmitRequest) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := newRun(p.sm)

	if err := r.advance(StateValidating); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if req.Signature == nil || req.Signature.Blank() {
		return nil, r.fail(FailureMissingInput, fmt.Errorf("draw your signature before submitting"))
	}
	if name == "" {
		return nil, r.fail(FailureMissingInput, fmt.Errorf("enter your full name"))
	}

	if err := r.advance(StateCheckingDuplicate); err != nil {
		return nil, err
	}
	identity := registry.Normalize(name)
	seen, err := p.registry.Contains(identity)
	if err != nil {
		r.current = StateFailed
		return nil, fmt.Errorf("check signature registry: %w", err)
	}
	if seen {
		p.logger.Info("Rejected duplicate submission", zap.String("identity", identity))
		return nil, r.fail(FailureDuplicateSubmission, fmt.Errorf("this document was already signed under this name"))
	}

	if err := r.advance(StateComposing); err != nil {
		return nil, err
	}
	signed, err := p.composer.Compose(p.source, req.Signature, name)
	if err != nil {
		return nil, r.fail(FailureComposition, err)
	}

	if err := r.advance(StateDelivering); err != nil {
		return nil, err
	}
	if err := p.mailer.Send(ctx, signed, p.attachmentName, name); err != nil {
		// Registry untouched: the signer may retry after the transport
		// recovers.
		return nil, r.fail(FailureDelivery, err)
	}

	if err := r.advance(StateRecording); err != nil {
		return nil, err
	}
	if err := p.registry.Record(identity); err != nil {
		// Delivery already happened; surface the write failure rather
		// than pretending the submission did not complete.
		r.current = StateFailed
		return nil, fmt.Errorf("record signature after delivery: %w", err)
	}

	if err := r.advance(StateDone); err != nil {
		return nil, err
	}

	receipt := &Receipt{
		ID:          uuid.New(),
		SignerName:  name,
		Identity:    identity,
		CompletedAt: time.Now(),
	}
	p.logger.Info("Submission completed",
		zap.String("submission_id", receipt.ID.String()),
		zap.String("identity", identity))
	return receipt, nil
}
