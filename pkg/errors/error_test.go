package errors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	. "switchdesk/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{ProblemNotFound, "Problem not found"},
		{InvalidParams, "Invalid parameters"},
		{DatabaseError, "Database operation failed"},
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
		{Success, http.StatusOK},
		{InvalidParams, http.StatusBadRequest},
		{ValidationFailed, http.StatusBadRequest},
		{ProblemNotFound, http.StatusNotFound},
		{DatabaseError, http.StatusInternalServerError},
		{OperatorListFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestWrapHidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:3306: connection refused")
	err := Wrap(fmt.Errorf("select operators: %w", cause), OperatorListFailed)

	if err.Error() != OperatorListFailed.Message() {
		t.Errorf("Error() = %v, want %v", err.Error(), OperatorListFailed.Message())
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error should unwrap to the cause")
	}
	if Wrap(nil, DatabaseError) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestWrapKeepsExistingError(t *testing.T) {
	inner := New(ProblemNotFound)
	outer := fmt.Errorf("lookup: %w", inner)

	if got := GetError(outer); got != inner {
		t.Errorf("GetError() = %v, want the inner error", got)
	}
	if !Is(outer, ProblemNotFound) {
		t.Error("Is() should see through fmt wrapping")
	}
	if got := GetError(errors.New("plain")).Code; got != InternalServerError {
		t.Errorf("GetError(plain).Code = %v, want %v", got, InternalServerError)
	}
}

func TestConstructors(t *testing.T) {
	err := Newf(ProblemNotFound, "problem %d not found", 42)
	if err.Error() != "problem 42 not found" || err.Code != ProblemNotFound {
		t.Errorf("Newf() = %v (%v)", err, err.Code)
	}
	bad := BadRequest("id must be positive")
	if bad.Code != InvalidParams || bad.Error() != "id must be positive" {
		t.Errorf("BadRequest() = %v (%v)", bad, bad.Code)
	}
}

func TestFieldErrors(t *testing.T) {
	err := FieldErrors(map[string]string{
		"operator":   "operator is required",
		"product_id": "product_id must be at most 255 characters",
	})

	if err.Code != ValidationFailed {
		t.Fatalf("Code = %v, want %v", err.Code, ValidationFailed)
	}
	if err.Error() != "Validation failed: operator, product_id" {
		t.Errorf("Error() = %q", err.Error())
	}
	fields := Fields(fmt.Errorf("create: %w", err))
	if fields["operator"] != "operator is required" {
		t.Errorf("Fields()[operator] = %q", fields["operator"])
	}
	if Fields(errors.New("plain")) != nil {
		t.Error("Fields(plain) should be nil")
	}
}
