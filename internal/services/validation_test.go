package services_test

import (
	"errors"
	"strings"
	"testing"

	"todolist/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTaskInput(t *testing.T) {
	tests := []struct {
		name      string
		input     services.TaskInput
		wantField string
		wantTitle string
	}{
		{name: "valid", input: services.TaskInput{Title: "Buy milk", Description: "2 litres"}, wantTitle: "Buy milk"},
		{name: "title is trimmed", input: services.TaskInput{Title: "  Buy milk\t"}, wantTitle: "Buy milk"},
		{name: "empty description allowed", input: services.TaskInput{Title: "x"}, wantTitle: "x"},
		{name: "title at limit", input: services.TaskInput{Title: strings.Repeat("é", 100)}, wantTitle: strings.Repeat("é", 100)},
		{name: "empty title", input: services.TaskInput{Title: ""}, wantField: "title"},
		{name: "whitespace title", input: services.TaskInput{Title: " \n "}, wantField: "title"},
		{name: "title over limit", input: services.TaskInput{Title: strings.Repeat("a", 101)}, wantField: "title"},
		{name: "description over limit", input: services.TaskInput{Title: "a", Description: strings.Repeat("b", 10001)}, wantField: "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := services.ValidateTaskInput(tt.input)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantTitle, got.Title)
				return
			}

			var ve *services.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.NotEmpty(t, ve.Message)
		})
	}
}

func TestValidateSignupInput(t *testing.T) {
	tests := []struct {
		name      string
		input     services.SignupInput
		wantErr   error
		wantField string
	}{
		{name: "valid", input: services.SignupInput{Username: "alice.b+1@x_y-z", Password: "pw", PasswordConfirm: "pw"}},
		{name: "surrounding whitespace ignored", input: services.SignupInput{Username: " bob\t", Password: "pw", PasswordConfirm: "pw"}},
		{name: "username at limit", input: services.SignupInput{Username: strings.Repeat("u", 150), Password: "pw", PasswordConfirm: "pw"}},
		{name: "non-ascii letter", input: services.SignupInput{Username: "jürgen", Password: "pw", PasswordConfirm: "pw"}, wantField: "username"},
		{name: "mismatch with empty confirmation", input: services.SignupInput{Username: "alice", Password: "pw"}, wantErr: services.ErrPasswordMismatch},
		{name: "mismatch reported first", input: services.SignupInput{Username: "", Password: "a", PasswordConfirm: "b"}, wantErr: services.ErrPasswordMismatch},
		{name: "missing username", input: services.SignupInput{Password: "pw", PasswordConfirm: "pw"}, wantField: "username"},
		{name: "username too long", input: services.SignupInput{Username: strings.Repeat("u", 151), Password: "pw", PasswordConfirm: "pw"}, wantField: "username"},
		{name: "username with space", input: services.SignupInput{Username: "al ice", Password: "pw", PasswordConfirm: "pw"}, wantField: "username"},
		{name: "username with slash", input: services.SignupInput{Username: "al/ice", Password: "pw", PasswordConfirm: "pw"}, wantField: "username"},
		{name: "missing password", input: services.SignupInput{Username: "alice"}, wantField: "password1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := services.ValidateSignupInput(tt.input)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantField != "":
				var ve *services.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, tt.wantField, ve.Field)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &services.ValidationError{Field: "title", Message: "this field is required"}
	assert.Equal(t, "title: this field is required", err.Error())

	err = &services.ValidationError{Message: "bad input"}
	assert.Equal(t, "bad input", err.Error())

	assert.False(t, services.IsValidationError(services.ErrTaskNotFound))
}

func TestValidateSignupInput_TrimsUsername(t *testing.T) {
	got, err := services.ValidateSignupInput(services.SignupInput{Username: "  bob ", Password: "pw", PasswordConfirm: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)
}

func TestValidateTaskInput_Messages(t *testing.T) {
	_, err := services.ValidateTaskInput(services.TaskInput{Title: strings.Repeat("a", 101)})
	var ve *services.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)
	assert.Equal(t, "ensure this value has at most 100 characters", ve.Message)

	_, err = services.ValidateTaskInput(services.TaskInput{})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "this field is required", ve.Message)
}

func TestTranslateValidationError(t *testing.T) {
	err := services.TranslateValidationError(errors.New("malformed body"))
	var ve *services.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, ve.Field)

	_, err = services.ValidateSignupInput(services.SignupInput{Username: "al/ice", Password: "pw", PasswordConfirm: "pw"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "username", ve.Field)
	assert.Contains(t, ve.Message, "valid username")
}
