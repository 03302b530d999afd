package storage

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	ok := []Statement{{Text: "Hello"}, {Text: "Hi", InResponseTo: "Hello"}}
	if err := Validate(ok); err != nil {
		t.Errorf("Validate(valid) = %v, want nil", err)
	}

	bad := []Statement{{Text: "Hello"}, {Text: "", InResponseTo: "Hello"}}
	if err := Validate(bad); !errors.Is(err, ErrInvalidStatement) {
		t.Errorf("Validate(empty text) = %v, want ErrInvalidStatement", err)
	}
}
