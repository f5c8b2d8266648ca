package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(CodeValidation, "invalid input"),
			want: "VALIDATION_ERROR: invalid input",
		},
		{
			name: "with wrapped error",
			err:  Wrap(CodeBackend, "query failed", errors.New("underlying")),
			want: "BACKEND_ERROR: query failed: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeIO, "wrapped", underlying)

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlying)
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestAppError_ExitCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{CodeValidation, 2},
		{CodeNotFound, 2},
		{CodeInvariant, 3},
		{CodeInternal, 3},
		{CodeBackend, 1},
		{CodeIO, 1},
		{CodeRemote, 1},
		{CodeUnavailable, 1},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := New(tt.code, "test").ExitCode(); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppError_WithDetail(t *testing.T) {
	err := New(CodeInvariant, "missing score").
		WithDetail("feature", "TF_T").
		WithDetail("query", "person")

	if err.Details["feature"] != "TF_T" {
		t.Errorf("Details[feature] = %s, want TF_T", err.Details["feature"])
	}
	if err.Details["query"] != "person" {
		t.Errorf("Details[query] = %s, want person", err.Details["query"])
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code string
	}{
		{"validation", ValidationError("bad"), CodeValidation},
		{"not found", NotFoundError("ontology"), CodeNotFound},
		{"backend", BackendError("query", errors.New("x")), CodeBackend},
		{"io", IOError("write", errors.New("x")), CodeIO},
		{"remote", RemoteError("lov", errors.New("x")), CodeRemote},
		{"invariant", InvariantError("missing"), CodeInvariant},
		{"internal", InternalError("boom", nil), CodeInternal},
		{"unavailable", ServiceUnavailableError("redis"), CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
		})
	}

	if msg := NotFoundError("ontology").Message; msg != "ontology not found" {
		t.Errorf("NotFoundError message = %q", msg)
	}
	if msg := ServiceUnavailableError("").Message; msg != "service unavailable" {
		t.Errorf("ServiceUnavailableError message = %q", msg)
	}
}

func TestPredicates_WrappedChain(t *testing.T) {
	err := fmt.Errorf("writing matrix: %w", InvariantError("missing score"))

	if !IsInvariant(err) {
		t.Error("IsInvariant should see through fmt wrapping")
	}
	if IsNotFound(err) {
		t.Error("IsNotFound should be false")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("CodeOf(plain error) should be empty")
	}
	if !IsRemote(RemoteError("lov", nil)) {
		t.Error("IsRemote should be true")
	}
	if !IsValidation(ValidationError("x")) {
		t.Error("IsValidation should be true")
	}
}
