package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// TaskInput is the submitted body of the create and edit task forms.
type TaskInput struct {
	Title       string `form:"title" binding:"required,max=100"`
	Description string `form:"description" binding:"max=10000"`
}

// SignupInput is the submitted body of the signup form.
type SignupInput struct {
	Username        string `form:"username" binding:"required,max=150,username"`
	Password        string `form:"password1" binding:"required"`
	PasswordConfirm string `form:"password2" binding:"eqfield=Password"`
}

// SigninInput is the submitted body of the signin form.
type SigninInput struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(formFieldName)
		_ = v.RegisterValidation("username", validUsername)
	}
}

// formFieldName reports fields by their form name so errors point at the
// input the user filled in.
func formFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}

// validUsername accepts letters, digits and @/./+/-/_ once surrounding
// whitespace is removed.
func validUsername(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" {
		return false
	}
	for _, char := range value {
		switch {
		case char >= 'a' && char <= 'z', char >= 'A' && char <= 'Z', char >= '0' && char <= '9':
		case strings.ContainsRune("@.+-_", char):
		default:
			return false
		}
	}
	return true
}

// ValidateTaskInput trims the title and checks both fields against the
// column limits. It never touches the database.
func ValidateTaskInput(in TaskInput) (TaskInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := binding.Validator.ValidateStruct(in); err != nil {
		return in, TranslateValidationError(err)
	}
	return in, nil
}

// ValidateSignupInput trims the username and validates the form. A password
// mismatch wins over any other problem and is reported as ErrPasswordMismatch.
func ValidateSignupInput(in SignupInput) (SignupInput, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := binding.Validator.ValidateStruct(in); err != nil {
		return in, TranslateValidationError(err)
	}
	return in, nil
}

// TranslateValidationError maps a binding or validator failure to the
// service error kinds: ErrPasswordMismatch or a *ValidationError for the
// first rejected field.
func TranslateValidationError(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return newValidationError("", "invalid form submission")
	}

	for _, fe := range fieldErrors {
		if fe.Tag() == "eqfield" {
			return ErrPasswordMismatch
		}
	}

	fe := fieldErrors[0]
	return newValidationError(fe.Field(), validationMessage(fe))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return fmt.Sprintf("ensure this value has at most %s characters", fe.Param())
	case "username":
		return "enter a valid username: letters, digits and @/./+/-/_ only"
	default:
		return fmt.Sprintf("failed on the %q rule", fe.Tag())
	}
}
