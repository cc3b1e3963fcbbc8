package application

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrRepository = errors.New("repository error")
)

var validate = validator.New()

// Validate checks the struct tags of a command.
func Validate(cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return NewValidation(fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
		}
		return NewValidation(err.Error())
	}
	return nil
}

func NewValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func WrapRepository(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}
