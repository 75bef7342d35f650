// Package saga runs multi-step flows across aggregates. Steps are not atomic:
// when one fails, the compensations of the completed steps run in reverse order.
package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"taskline/internal/logging"
	"taskline/internal/metrics"
)

type Step struct {
	Name string
	Do   func(ctx context.Context) error
	// Compensate undoes Do. Nil marks a step that cannot be undone.
	Compensate func(ctx context.Context) error
}

type Saga struct {
	Name    string
	ID      string
	Steps   []Step
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// StepError reports the failed step. It unwraps to the step error so callers
// can still match domain errors.
type StepError struct {
	Saga string
	Step string
	Err  error
	// Compensation holds the joined compensation failures, if any.
	Compensation error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s: step %s: %v", e.Saga, e.Step, e.Err)
	if e.Compensation != nil {
		msg += fmt.Sprintf(" (compensation failed: %v)", e.Compensation)
	}
	return msg
}

func (e *StepError) Unwrap() error { return e.Err }

func New(name string, logger logging.Logger, m *metrics.Metrics) *Saga {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Saga{Name: name, ID: xid.New().String(), Logger: logger, Metrics: m}
}

// Step appends a step and returns the saga for chaining.
func (s *Saga) Step(name string, do, compensate func(ctx context.Context) error) *Saga {
	s.Steps = append(s.Steps, Step{Name: name, Do: do, Compensate: compensate})
	return s
}

// Run executes the steps in order.
func (s *Saga) Run(ctx context.Context) error {
	for i, step := range s.Steps {
		if err := step.Do(ctx); err != nil {
			s.Logger.Infow("saga step failed", "saga", s.Name, "run", s.ID, "step", step.Name, "error", err)
			return &StepError{
				Saga:         s.Name,
				Step:         step.Name,
				Err:          err,
				Compensation: s.compensate(context.WithoutCancel(ctx), s.Steps[:i]),
			}
		}
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, done []Step) error {
	if len(done) == 0 {
		return nil
	}
	s.Metrics.Compensated(s.Name)
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			s.Logger.Warnw("saga step left in place", "saga", s.Name, "run", s.ID, "step", step.Name)
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.Logger.Errorw("saga compensation failed", "saga", s.Name, "run", s.ID, "step", step.Name, "error", err)
			errs = append(errs, fmt.Errorf("compensate %s: %w", step.Name, err))
			continue
		}
		s.Logger.Infow("saga step compensated", "saga", s.Name, "run", s.ID, "step", step.Name)
	}
	return errors.Join(errs...)
}
