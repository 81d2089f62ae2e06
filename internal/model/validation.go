package model

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

// FieldKind is a bit set of accepted primitive shapes for CheckField.
type FieldKind uint8

const (
	StringKind FieldKind = 1 << iota
	BoolKind
	ListKind
	MappingKind
	NumberKind

	// AnyKind skips the shape check.
	AnyKind FieldKind = 0
)

func (k FieldKind) String() string {
	if k == AnyKind {
		return "any"
	}
	var names []string
	for _, candidate := range []struct {
		kind FieldKind
		name string
	}{
		{StringKind, "string"},
		{BoolKind, "bool"},
		{ListKind, "list"},
		{MappingKind, "mapping"},
		{NumberKind, "number"},
	} {
		if k&candidate.kind != 0 {
			names = append(names, candidate.name)
		}
	}
	return strings.Join(names, " or ")
}

// FieldError is the structured failure reported by CheckField.
type FieldError struct {
	Field    string
	Expected FieldKind
	Actual   any
	Missing  bool
}

func (e *FieldError) Error() string {
	switch {
	case e.Missing:
		return fmt.Sprintf("must have a %q field", e.Field)
	case e.Actual == nil:
		return fmt.Sprintf("%s cannot be null", e.Field)
	default:
		return fmt.Sprintf("%s is %s, expected %s", e.Field, describe(e.Actual), e.Expected)
	}
}

// CheckField asserts that container has field, that it is non-null unless
// nullable, and that a non-null value has one of the expected shapes.
func CheckField(container Document, field string, expected FieldKind, nullable bool) error {
	value, ok := container[field]
	if !ok {
		return &FieldError{Field: field, Expected: expected, Missing: true}
	}
	if value == nil {
		if nullable {
			return nil
		}
		return &FieldError{Field: field, Expected: expected}
	}
	if expected != AnyKind && kindOf(value)&expected == 0 {
		return &FieldError{Field: field, Expected: expected, Actual: value}
	}
	return nil
}

func kindOf(v any) FieldKind {
	switch v.(type) {
	case string:
		return StringKind
	case bool:
		return BoolKind
	case []any:
		return ListKind
	case map[string]any:
		return MappingKind
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return NumberKind
	default:
		return AnyKind
	}
}

func describe(v any) string {
	if v == nil {
		return "null"
	}
	if kind := kindOf(v); kind != AnyKind {
		return kind.String()
	}
	return fmt.Sprintf("%T", v)
}

// checker is the per-type validation hook. It may stop at the first problem by
// returning an error, or collect every problem and return them as messages.
type checker interface {
	check() ([]string, error)
}

// validate runs the hook and folds either mode into a single ValidationError.
func validate(field string, c checker) error {
	problems, err := c.check()
	if err != nil {
		var validationErr *apperrors.ValidationError
		if errors.As(err, &validationErr) {
			return err
		}
		return apperrors.NewValidationError(field, err.Error(), err)
	}
	if len(problems) > 0 {
		return apperrors.NewValidationProblems(field, problems)
	}
	return nil
}

// decodeError converts a decoding failure into a ValidationError located at path.
func decodeError(path string, err error) error {
	if err == nil {
		return nil
	}
	var validationErr *apperrors.ValidationError
	if errors.As(err, &validationErr) {
		return err
	}
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		field := joinPath(path, fieldErr.Field)
		located := *fieldErr
		located.Field = field
		return apperrors.NewValidationError(field, located.Error(), fieldErr)
	}
	return apperrors.NewValidationError(path, err.Error(), err)
}

// within re-roots a nested ValidationError under prefix, keeping its problems.
func within(prefix string, err error) error {
	var validationErr *apperrors.ValidationError
	if !errors.As(err, &validationErr) {
		return apperrors.NewValidationError(prefix, err.Error(), err)
	}
	located := *validationErr
	located.Field = joinPath(prefix, validationErr.Field)
	located.Problems = append([]string(nil), validationErr.Problems...)
	return &located
}

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		validateInst = validator.New(validator.WithRequiredStructEnabled())
	})
	return validateInst
}

// structProblems runs the struct tags of v and renders every failure as a message.
func structProblems(v any) []string {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return []string{err.Error()}
	}

	problems := make([]string, 0, len(ves))
	for _, fe := range ves {
		problems = append(problems, describeFieldError(fe))
	}
	return problems
}

func describeFieldError(fe validator.FieldError) string {
	field := documentFieldName(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s cannot be null", field)
	case "unique":
		return fmt.Sprintf("%s IDs must be unique", field)
	default:
		return fmt.Sprintf("%s failed validation for tag '%s'", field, fe.Tag())
	}
}

// documentFieldName maps "Schema.Inputs[0].ID" to "inputs[0].id".
func documentFieldName(fe validator.FieldError) string {
	parts := strings.Split(fe.StructNamespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}
	return strings.Join(parts, ".")
}
