package decorator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/code19m/errx"
	"github.com/go-playground/validator/v10"

	"github.com/x-research-team/dtx-commander/bus/command"
)

// CodeValidationFailed - код ошибки валидации команды.
const CodeValidationFailed = "VALIDATION_FAILED"

// NewValidator создает валидатор, который называет поля по тегу json.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate возвращает декоратор, который проверяет теги validate команды до
// вызова оставшейся цепочки. Команды, не являющиеся структурами, пропускаются.
// nil означает валидатор NewValidator.
func Validate[C command.Command[R], R any](v *validator.Validate) command.Decorator[C, R] {
	if v == nil {
		v = NewValidator()
	}

	return command.DecoratorFunc[C, R](func(ctx context.Context, cmd C, next command.Next[C, R]) (R, error) {
		if err := validateCommand(v, cmd); err != nil {
			var zero R
			return zero, err
		}
		return next(ctx, cmd)
	})
}

func validateCommand(v *validator.Validate, cmd any) error {
	val := reflect.ValueOf(cmd)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return errx.New("команда не может быть nil",
				errx.WithCode(CodeValidationFailed),
				errx.WithType(errx.T_Validation),
			)
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}

	err := v.Struct(cmd)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(errx.M, len(validationErrors))
		for _, fieldErr := range validationErrors {
			fields[fieldErr.Field()] = describe(fieldErr)
		}

		return errx.New(
			"команда не прошла валидацию",
			errx.WithCode(CodeValidationFailed),
			errx.WithType(errx.T_Validation),
			errx.WithFields(fields),
		)
	}
	return errx.New(
		fmt.Sprintf("неизвестная ошибка валидации: %s", err.Error()),
		errx.WithCode(CodeValidationFailed),
		errx.WithType(errx.T_Validation),
	)
}

func describe(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "поле обязательно"
	case "email":
		return "неверный формат email"
	case "uuid", "uuid4":
		return "неверный формат UUID"
	case "min", "gte":
		return fmt.Sprintf("значение должно быть не меньше %s", fieldErr.Param())
	case "max", "lte":
		return fmt.Sprintf("значение должно быть не больше %s", fieldErr.Param())
	case "gt":
		return fmt.Sprintf("значение должно быть больше %s", fieldErr.Param())
	case "lt":
		return fmt.Sprintf("значение должно быть меньше %s", fieldErr.Param())
	case "oneof":
		return fmt.Sprintf("значение должно быть одним из: %s", fieldErr.Param())
	case "nefield":
		return fmt.Sprintf("значение должно отличаться от поля %s", fieldErr.Param())
	}
	return fmt.Sprintf("нарушено правило %s", fieldErr.Tag())
}
