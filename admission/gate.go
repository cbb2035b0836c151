// Package admission decides whether a request may reach a state-mutating operation.
//
// A Gate combines bot screening with rate limiting. Callers pass a cost in
// units so expensive operations (creating a listing) consume more budget than
// cheap ones (saving a job).
package admission

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/logger"
)

// Request describes the caller as seen at the boundary.
type Request struct {
	ClientKey string // Stable caller identity: user id when known, else remote address
	UserAgent string
	Path      string
}

// Decision is the outcome of an evaluation.
type Decision struct {
	Allow  bool
	Reason string // Set on denial; logged, never shown to the caller
}

// Allowed is the decision every passing gate returns.
var Allowed = Decision{Allow: true}

// Deny builds a denial with a reason.
func Deny(reason string) Decision {
	return Decision{Allow: false, Reason: reason}
}

// Gate evaluates requests. An error means the gate could not decide.
type Gate interface {
	Evaluate(ctx context.Context, req Request, cost int) (Decision, error)
}

// Cost units charged per operation.
const (
	CostRead     = 1
	CostSave     = 1
	CostApply    = 2
	CostOnboard  = 3
	CostMutation = 2
	CostCreate   = 5
)

// Chain allows a request only if every gate allows it. Evaluation stops at the first denial.
type Chain []Gate

// Evaluate implements Gate
func (c Chain) Evaluate(ctx context.Context, req Request, cost int) (Decision, error) {
	for _, g := range c {
		d, err := g.Evaluate(ctx, req, cost)
		if err != nil {
			return Decision{}, err
		}
		if !d.Allow {
			return d, nil
		}
	}
	return Allowed, nil
}

type allowAll struct{}

func (allowAll) Evaluate(context.Context, Request, int) (Decision, error) { return Allowed, nil }

// AllowAll returns a gate that admits everything, used when admission is disabled.
func AllowAll() Gate { return allowAll{} }

// Enforcer turns gate decisions into errors for domain code.
type Enforcer struct {
	gate   Gate
	logger *zap.SugaredLogger
}

// NewEnforcer wraps gate. A nil gate admits everything.
func NewEnforcer(gate Gate, log *zap.SugaredLogger) *Enforcer {
	if gate == nil {
		gate = AllowAll()
	}
	return &Enforcer{gate: gate, logger: log}
}

// Admit returns nil when req may proceed and ErrAdmissionDenied otherwise.
// A gate failure is treated as a denial.
func (e *Enforcer) Admit(ctx context.Context, req Request, cost int) error {
	d, err := e.gate.Evaluate(ctx, req, cost)
	if err != nil {
		e.logger.Errorw("Admission gate failed, denying",
			logger.FieldClientKey, req.ClientKey,
			logger.FieldPath, req.Path,
			logger.FieldError, err)
		return errors.Wrap(errors.WithSecondaryError(errors.ErrAdmissionDenied, err), "admission gate unavailable")
	}
	if !d.Allow {
		e.logger.Infow("Admission denied",
			logger.FieldClientKey, req.ClientKey,
			logger.FieldPath, req.Path,
			"reason", d.Reason,
			"cost", cost)
		return errors.Wrap(errors.ErrAdmissionDenied, d.Reason)
	}
	return nil
}
