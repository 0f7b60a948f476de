package dynamo

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatus_Ordering(t *testing.T) {
	order := []Status{StatusOK, StatusDiscard, StatusWarning, StatusError, StatusFatal}
	for i := 1; i < len(order); i++ {
		if Worse(order[i-1], order[i]) != order[i] {
			t.Errorf("%s should be worse than %s", order[i], order[i-1])
		}
	}
}

func TestStatus_Reactions(t *testing.T) {
	tests := []struct {
		s       Status
		proceed bool
		severe  bool
	}{
		{StatusOK, true, false},
		{StatusDiscard, false, false},
		{StatusWarning, true, false},
		{StatusError, false, true},
		{StatusFatal, false, true},
	}
	for _, tt := range tests {
		if tt.s.Proceed() != tt.proceed || tt.s.Severe() != tt.severe {
			t.Errorf("%s: proceed=%v severe=%v", tt.s, tt.s.Proceed(), tt.s.Severe())
		}
	}
	if Status(9).Valid() || Status(9).String() != "Unknown" {
		t.Error("out of range status should be invalid")
	}
}

func TestOutcomeError(t *testing.T) {
	err := fmt.Errorf("run: %w", &OutcomeError{Op: "doStep", Status: StatusFatal})
	if err.Error() != "run: doStep returned status: Fatal" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrFatal) {
		t.Error("expected match on ErrFatal")
	}
	if errors.Is(err, ErrError) {
		t.Error("fatal must not match ErrError")
	}
	if warn := (&OutcomeError{Op: "setValues", Status: StatusWarning}); !errors.Is(warn, ErrWarning) || errors.Is(warn, ErrError) {
		t.Error("warning must match ErrWarning only")
	}
}

func TestParseLogLevel(t *testing.T) {
	l, ok := ParseLogLevel("debug")
	if !ok || l != LogDebug || l.String() != "debug" {
		t.Errorf("ParseLogLevel(debug) = %v, %v", l, ok)
	}
	if _, ok := ParseLogLevel("loud"); ok {
		t.Error("unknown level accepted")
	}
}
