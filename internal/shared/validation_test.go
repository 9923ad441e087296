package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type nestedForm struct {
	Port       string `json:"port" validate:"omitempty,port"`
	Encryption string `json:"encryption" validate:"omitempty,oneof=tls ssl none"`
}

type sampleForm struct {
	Email        string     `json:"email" validate:"required,email"`
	Password     string     `json:"password" validate:"required,min=6"`
	Confirmation string     `json:"password_confirmation" validate:"eqfield=Password"`
	Permissions  []string   `json:"permissions" validate:"min=1"`
	Display      string     `form:"display_name" validate:"required"`
	SMTP         nestedForm `json:"smtp"`
}

func TestValidationMessages(t *testing.T) {
	v := NewValidator()
	err := v.Struct(sampleForm{
		Email:        "nope",
		Password:     "123",
		Confirmation: "456",
		Permissions:  []string{},
		SMTP:         nestedForm{Port: "0", Encryption: "starttls"},
	})

	msgs := ValidationMessages(err)
	assert.Equal(t, "Please enter a valid email address", msgs["email"])
	assert.Equal(t, "Password must be of 6 characters or more", msgs["password"])
	assert.Equal(t, "Passwords & Confirm Password must match", msgs["password_confirmation"])
	assert.Equal(t, "At least 1 permission required", msgs["permissions"])
	assert.Equal(t, "Display name is required", msgs["display_name"])
	assert.Equal(t, "Port must be between 1 and 65535", msgs["smtp.port"])
	assert.Equal(t, "Encryption must be one of: tls ssl none", msgs["smtp.encryption"])
}

func TestPortValidation(t *testing.T) {
	v := NewValidator()
	for port, ok := range map[string]bool{"1": true, "587": true, "65535": true, "0": false, "65536": false, "abc": false, "": true} {
		err := v.Struct(nestedForm{Port: port})
		assert.Equal(t, ok, err == nil, "port %q", port)
	}
}

func TestValidationMessagesNonValidatorError(t *testing.T) {
	assert.Nil(t, ValidationMessages(nil))
	assert.Equal(t, map[string]string{"general": "boom"}, ValidationMessages(errors.New("boom")))
}
