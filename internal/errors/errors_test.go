package errors

import (
	"fmt"
	"testing"
)

func TestHiveError_Error(t *testing.T) {
	err := &HiveError{
		Code:    ErrSchema,
		Status:  404,
		Message: "/name: no such slot",
	}

	expected := "SCHEMA: /name: no such slot"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("path is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "path is required" {
		t.Errorf("Message = %q, want %q", err.Message, "path is required")
	}
}

func TestNewUsage(t *testing.T) {
	err := NewUsage("expected 2 arguments")

	if err.Code != ErrUsage {
		t.Errorf("Code = %q, want %q", err.Code, ErrUsage)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("/tmp/missing.template")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["path"] != "/tmp/missing.template" {
		t.Errorf("Details[path] = %v, want %q", err.Details["path"], "/tmp/missing.template")
	}
}

func TestNewSchema(t *testing.T) {
	err := NewSchema("/country/name", "not a dataset")

	if err.Code != ErrSchema {
		t.Errorf("Code = %q, want %q", err.Code, ErrSchema)
	}
	if err.Message != "/country/name: not a dataset" {
		t.Errorf("Message = %q, want %q", err.Message, "/country/name: not a dataset")
	}
	if err.Details["path"] != "/country/name" {
		t.Errorf("Details[path] = %v, want %q", err.Details["path"], "/country/name")
	}
}

func TestNewIntegrity(t *testing.T) {
	err := NewIntegrity("0000000002")

	if err.Code != ErrIntegrity {
		t.Errorf("Code = %q, want %q", err.Code, ErrIntegrity)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	if err.Details["label"] != "0000000002" {
		t.Errorf("Details[label] = %v, want %q", err.Details["label"], "0000000002")
	}
}

func TestConflictStatuses(t *testing.T) {
	for _, err := range []*HiveError{
		NewAlreadyExists("/ref"),
		NewReadOnly("/tmp/a"),
		NewClosed("/tmp/a"),
	} {
		if err.Status != 409 {
			t.Errorf("%s: Status = %d, want 409", err.Code, err.Status)
		}
		if err.Details["path"] == nil {
			t.Errorf("%s: Details[path] missing", err.Code)
		}
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		originalErr := fmt.Errorf("disk full")
		err := NewInternal(originalErr)

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Status != 500 {
			t.Errorf("Status = %d, want 500", err.Status)
		}
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details["internal_error"] != "disk full" {
			t.Errorf("Details[internal_error] = %q, want %q", err.Details["internal_error"], "disk full")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details == nil {
			t.Error("Details should not be nil")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		err := NewSchema("/x", "missing")
		if !Is(err, ErrSchema) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		err := NewSchema("/x", "missing")
		if Is(err, ErrIntegrity) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("non-HiveError", func(t *testing.T) {
		err := fmt.Errorf("plain error")
		if Is(err, ErrSchema) {
			t.Error("Is() = true, want false for non-HiveError")
		}
	})

	t.Run("wrapped HiveError", func(t *testing.T) {
		inner := NewIntegrity("0000000001")
		wrapped := fmt.Errorf("cells: %w", inner)
		if !Is(wrapped, ErrIntegrity) {
			t.Error("Is() = false, want true for wrapped HiveError")
		}
		if Is(wrapped, ErrSchema) {
			t.Error("Is() = true, want false for wrong code on wrapped HiveError")
		}
	})
}
