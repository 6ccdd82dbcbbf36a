package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{MissingField("activity", 3), KindMissingField},
		{InvalidTimestamp("yesterday", 2), KindTimestampParse},
		{MissingColumn("case_id", []string{"id"}), KindMissingColumn},
		{UnsupportedFormat("log.bin"), KindInvalidFormat},
		{FileNotFound("/nope.csv"), KindNotFound},
		{fmt.Errorf("plain"), KindInternal},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.expected {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.expected)
		}
	}
}

func TestError_WrappedThroughFmt(t *testing.T) {
	base := InvalidTimestamp("not-a-date", 7)
	wrapped := fmt.Errorf("loading upload: %w", base)

	if !IsCode(wrapped, CodeInvalidTimestamp) {
		t.Errorf("Expected wrapped error to carry %s", CodeInvalidTimestamp)
	}
	if !errors.Is(wrapped, New(CodeInvalidTimestamp, "")) {
		t.Error("errors.Is should match on code")
	}
	if !IsValidation(wrapped) {
		t.Error("Timestamp errors are validation errors")
	}
}

func TestError_Message(t *testing.T) {
	err := Wrap(fmt.Errorf("boom"), CodeParseFailed, "read failed").
		WithContext("row", 4).
		WithContext("format", "csv")

	msg := err.Error()
	if !strings.HasPrefix(msg, "[E201] read failed") {
		t.Errorf("Unexpected prefix: %q", msg)
	}
	// Context keys are rendered in sorted order
	if !strings.Contains(msg, "(format=csv, row=4)") {
		t.Errorf("Unexpected context rendering: %q", msg)
	}
	if !strings.HasSuffix(msg, ": boom") {
		t.Errorf("Cause missing: %q", msg)
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, CodeUnknown, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}
