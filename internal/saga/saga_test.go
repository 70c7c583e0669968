package saga

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestRunAllStepsSucceed(t *testing.T) {
	var calls []string
	s := New("test", zaptest.NewLogger(t))
	for _, name := range []string{"a", "b", "c"} {
		s.AddStep(Step{
			Name:       name,
			Action:     func(context.Context) error { calls = append(calls, name); return nil },
			Compensate: func(context.Context) error { calls = append(calls, "undo-"+name); return nil },
		})
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(calls, want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
}

func TestRunCompensatesInReverse(t *testing.T) {
	boom := errors.New("boom")
	var calls []string
	s := New("test", zaptest.NewLogger(t))
	s.AddStep(Step{
		Name:       "a",
		Action:     func(context.Context) error { calls = append(calls, "a"); return nil },
		Compensate: func(context.Context) error { calls = append(calls, "undo-a"); return nil },
	}).AddStep(Step{
		Name:   "b",
		Action: func(context.Context) error { calls = append(calls, "b"); return nil },
	}).AddStep(Step{
		Name:       "c",
		Action:     func(context.Context) error { return boom },
		Compensate: func(context.Context) error { calls = append(calls, "undo-c"); return nil },
	})

	err := s.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want wrapping %v", err, boom)
	}
	var sagaErr *Error
	if !errors.As(err, &sagaErr) || sagaErr.Step != "c" {
		t.Fatalf("expected *Error for step c, got %#v", err)
	}
	if want := []string{"a", "b", "undo-a"}; !reflect.DeepEqual(calls, want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
}

func TestCompensationRunsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compensatedWith error
	s := New("test", zaptest.NewLogger(t)).
		AddStep(Step{
			Name:       "create",
			Action:     func(context.Context) error { return nil },
			Compensate: func(c context.Context) error { compensatedWith = c.Err(); return nil },
		}).
		AddStep(Step{
			Name:   "fail",
			Action: func(context.Context) error { cancel(); return context.Canceled },
		})

	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v", err)
	}
	if compensatedWith != nil {
		t.Fatalf("compensation saw cancelled context: %v", compensatedWith)
	}
}

func TestCompensationFailureReported(t *testing.T) {
	undoErr := errors.New("undo failed")
	s := New("test", zaptest.NewLogger(t)).
		AddStep(Step{
			Name:       "a",
			Action:     func(context.Context) error { return nil },
			Compensate: func(context.Context) error { return undoErr },
		}).
		AddStep(Step{
			Name:   "b",
			Action: func(context.Context) error { return errors.New("b failed") },
		})

	err := s.Run(context.Background())
	var sagaErr *Error
	if !errors.As(err, &sagaErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if !errors.Is(sagaErr.CompensationErr, undoErr) {
		t.Fatalf("CompensationErr = %v, want %v", sagaErr.CompensationErr, undoErr)
	}
}
