package validator_test

import (
	"testing"

	"calshare/internal/validator"

	"github.com/stretchr/testify/assert"
)

func TestCustomTags(t *testing.T) {
	v := validator.New()

	type payload struct {
		Scope      string `validate:"omitempty,projection_scope"`
		Permission string `validate:"omitempty,agreement_permission"`
		Detail     string `validate:"omitempty,detail_visibility"`
		Role       string `validate:"omitempty,member_role"`
	}

	tests := []struct {
		name    string
		in      payload
		wantErr bool
	}{
		{"empty is fine", payload{}, false},
		{"valid values", payload{Scope: "title", Permission: "read", Detail: "busy", Role: "admin"}, false},
		{"full scope", payload{Scope: "full"}, false},
		{"bad scope", payload{Scope: "everything"}, true},
		{"bad permission", payload{Permission: "admin"}, true},
		{"bad detail", payload{Detail: "hidden"}, true},
		{"bad role", payload{Role: "editor"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
