package errors_test

import (
	"errors"
	"fmt"
	"testing"

	. "statebox/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{InvalidParams, "Invalid parameters"},
		{InvalidResource, "Invalid resource"},
		{DisposalFailed, "Failed to dispose staged secrets"},
		{ErrorCode(99999), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{InvalidResource, 400},
		{ValidationFailed, 400},
		{ContainerNotTracked, 404},
		{ContainerNotDone, 409},
		{SubprocessFailed, 502},
		{InspectParseFailed, 502},
		{DisposalFailed, 500},
		{InternalServerError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestNew(t *testing.T) {
	err := New(InvalidResource)

	if err.Code != InvalidResource {
		t.Errorf("Code = %v, want %v", err.Code, InvalidResource)
	}
	if err.Error() != InvalidResource.Message() {
		t.Errorf("Error() = %v, want %v", err.Error(), InvalidResource.Message())
	}
	if err.Stack == "" {
		t.Error("expected stack to be captured")
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("no space left on device")
	wrappedErr := Wrap(originalErr, SecretStageFailed)

	if wrappedErr.Code != SecretStageFailed {
		t.Errorf("Code = %v, want %v", wrappedErr.Code, SecretStageFailed)
	}
	if !errors.Is(wrappedErr, originalErr) {
		t.Error("wrapped error should match original with errors.Is")
	}
	if Wrap(nil, SecretStageFailed) != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestGetCodeFollowsChain(t *testing.T) {
	inner := New(SubprocessFailed)
	outer := fmt.Errorf("cleanup: %w", inner)

	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil error", err: nil, want: Success},
		{name: "custom error", err: inner, want: SubprocessFailed},
		{name: "wrapped custom error", err: outer, want: SubprocessFailed},
		{name: "standard error", err: errors.New("boom"), want: InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(InspectParseFailed)

	if !Is(err, InspectParseFailed) {
		t.Error("Is() should return true for matching code")
	}
	if Is(err, SubprocessFailed) {
		t.Error("Is() should return false for non-matching code")
	}
	if Is(nil, InspectParseFailed) {
		t.Error("Is() should return false for nil error")
	}
}

func TestExitCodeAndStderr(t *testing.T) {
	err := Newf(SubprocessFailed, "docker exit code: 125").
		WithDetail(DetailExitCode, 125).
		WithDetail(DetailStderr, "no such image")

	code, ok := ExitCode(fmt.Errorf("launch: %w", err))
	if !ok || code != 125 {
		t.Fatalf("ExitCode() = %d, %v", code, ok)
	}
	if got := Stderr(err); got != "no such image" {
		t.Fatalf("Stderr() = %q", got)
	}
	if _, ok := ExitCode(errors.New("plain")); ok {
		t.Fatal("plain errors carry no exit code")
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError("resource", "required")
	if err.Code != ValidationFailed {
		t.Error("ValidationError should use ValidationFailed code")
	}
	if err.Details["field"] != "resource" {
		t.Error("Field detail not set")
	}
}
