// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	vigilerrors "github.com/vigil-ai/vigil/pkg/errors"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := DefaultRetryConfig().Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesRecoverable(t *testing.T) {
	calls := 0
	cfg := DefaultRetryConfig().WithInitialDelay(time.Millisecond)
	err := cfg.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnUnrecoverable(t *testing.T) {
	calls := 0
	cfg := DefaultRetryConfig().WithInitialDelay(time.Millisecond)
	fatal := vigilerrors.New(vigilerrors.CodeValidationFailed, "bad input", nil)
	err := cfg.Do(context.Background(), func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error back, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("unrecoverable error must not be retried, got %d calls", calls)
	}
}

func TestGenerationRetryConfigTriesTwice(t *testing.T) {
	calls := 0
	cfg := GenerationRetryConfig().WithInitialDelay(time.Millisecond)
	err := cfg.Do(context.Background(), func() error {
		calls++
		return vigilerrors.New(vigilerrors.CodeGenerationFailure, "timeout", nil).
			WithRecoverable(true)
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 2 {
		t.Fatalf("generation policy is retry-once: expected 2 calls, got %d", calls)
	}
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultRetryConfig().WithInitialDelay(time.Hour)
	err := cfg.Do(ctx, func() error {
		return errors.New("transient")
	})
	ve := vigilerrors.AsVigilError(err)
	if ve.Code != vigilerrors.CodeTimeout {
		t.Fatalf("expected CodeTimeout on cancellation, got %v", ve.Code)
	}
}

func TestDoWithResult(t *testing.T) {
	cfg := DefaultRetryConfig().WithInitialDelay(time.Millisecond)
	calls := 0
	result, err := cfg.DoWithResult(context.Background(), func() (interface{}, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("transient")
		}
		return "value", nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if result != "value" {
		t.Fatalf("expected value, got %v", result)
	}
}
