package common

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

var (
	defaultValidator     *validator.Validate
	defaultValidatorOnce sync.Once
)

func getValidator() *validator.Validate {
	defaultValidatorOnce.Do(func() {
		defaultValidator = validator.New()
	})
	return defaultValidator
}

// ValidateStruct checks the `validate` tags of a struct and its nested structs
func ValidateStruct(i interface{}) error {
	if err := getValidator().Struct(i); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

type GenericEchoValidator struct {
	Validator *validator.Validate
}

func (gv *GenericEchoValidator) Validate(i interface{}) error {
	if gv.Validator == nil {
		gv.Validator = getValidator()
	}
	if err := gv.Validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("received invalid request body: %v", err))
	}
	return nil
}
