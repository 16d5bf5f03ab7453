package logging

import (
	"errors"
	"testing"
)

func TestService(t *testing.T) {
	attr := Service("ingest")
	if attr.Key != FieldService || attr.Value.String() != "ingest" {
		t.Errorf("unexpected attr: %+v", attr)
	}
}

func TestProjectID(t *testing.T) {
	attr := ProjectID(42)
	if attr.Key != FieldProjectID || attr.Value.Int64() != 42 {
		t.Errorf("unexpected attr: %+v", attr)
	}
}

func TestErrorNil(t *testing.T) {
	attr := Error(nil)
	if attr.Value.String() != "" {
		t.Errorf("expected empty string for nil error, got %q", attr.Value.String())
	}
}

func TestErrorWrapped(t *testing.T) {
	attr := Error(errors.New("boom"))
	if attr.Value.String() != "boom" {
		t.Errorf("expected %q, got %q", "boom", attr.Value.String())
	}
}
