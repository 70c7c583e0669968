// Package saga runs a short ordered list of steps and, when one fails,
// undoes the completed ones in reverse order.
package saga

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Error reports which step failed. Unwrap yields the step's own error so
// callers can still match domain sentinels.
type Error struct {
	Step            string
	Err             error
	CompensationErr error
}

func (e *Error) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("saga step %s failed: %v (compensation failed: %v)", e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("saga step %s failed: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Saga struct {
	name   string
	steps  []Step
	logger *zap.Logger
}

func New(name string, logger *zap.Logger) *Saga {
	return &Saga{name: name, logger: logger}
}

func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Run executes the steps in order. Compensations run on a context detached
// from cancellation so a dropped client does not leave half-made state.
func (s *Saga) Run(ctx context.Context) error {
	completed := make([]Step, 0, len(s.steps))
	for _, step := range s.steps {
		if err := step.Action(ctx); err != nil {
			s.logger.Warn("saga step failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
			return &Error{Step: step.Name, Err: err, CompensationErr: s.compensate(ctx, completed)}
		}
		completed = append(completed, step)
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, completed []Step) error {
	cctx := context.WithoutCancel(ctx)
	var errs []error
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(cctx); err != nil {
			s.logger.Error("saga compensation failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
			continue
		}
		s.logger.Info("saga step compensated", zap.String("saga", s.name), zap.String("step", step.Name))
	}
	return errors.Join(errs...)
}
