package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidPolicy, "bad bounds: lo=%v hi=%v", 50.0, 10.0)

	if err.Code != ErrCodeInvalidPolicy {
		t.Errorf("Code = %q, want %q", err.Code, ErrCodeInvalidPolicy)
	}
	if !strings.Contains(err.Error(), "INVALID_POLICY") {
		t.Errorf("Error() should contain the code, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "lo=50") {
		t.Errorf("Error() should contain the formatted message, got %q", err.Error())
	}
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("unexpected EOF")
	err := Wrap(ErrCodeDecode, cause, "decode source %s", "channel_2")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match the cause via errors.Is")
	}
	if !strings.Contains(err.Error(), "unexpected EOF") {
		t.Errorf("Error() should include the cause, got %q", err.Error())
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"matching code", New(ErrCodeEmptyStack, "no planes"), ErrCodeEmptyStack, true},
		{"different code", New(ErrCodeEmptyStack, "no planes"), ErrCodeDecode, false},
		{"wrapped in fmt", fmt.Errorf("job: %w", New(ErrCodeWrite, "disk full")), ErrCodeWrite, true},
		{"plain error", stderrors.New("plain"), ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is(%v, %q) = %v, want %v", tt.err, tt.code, got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if code := GetCode(New(ErrCodeDimensionMismatch, "shape")); code != ErrCodeDimensionMismatch {
		t.Errorf("GetCode = %q, want %q", code, ErrCodeDimensionMismatch)
	}
	if code := GetCode(stderrors.New("plain")); code != "" {
		t.Errorf("GetCode on plain error = %q, want empty", code)
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrCodeUnsupportedSample, "64-bit integer samples are not supported")
	if msg := UserMessage(err); strings.Contains(msg, "UNSUPPORTED") {
		t.Errorf("UserMessage should strip the code prefix, got %q", msg)
	}

	plain := stderrors.New("plain failure")
	if msg := UserMessage(plain); msg != "plain failure" {
		t.Errorf("UserMessage on plain error = %q", msg)
	}
}
