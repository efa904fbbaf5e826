package utils

import (
	"errors"
	"testing"
)

type sampleForm struct {
	RecordID string `json:"recordId" validate:"required"`
	UserID   string `json:"newUserId" validate:"required,numeric"`
}

func TestProcessValidationErrors_UsesJsonNames(t *testing.T) {
	err := Validator().Struct(sampleForm{UserID: "abc"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	fields := ProcessValidationErrors(err)
	if fields["recordId"] != "required" || fields["newUserId"] != "numeric" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestProcessValidationErrors_OtherErrors(t *testing.T) {
	fields := ProcessValidationErrors(errors.New("boom"))
	if fields["_"] != "boom" {
		t.Fatalf("unexpected fields %v", fields)
	}
}
