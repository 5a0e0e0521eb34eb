package typing

import "errors"

type UnsupportedDataTypeError struct {
	message string
}

func NewUnsupportedDataTypeError(message string) UnsupportedDataTypeError {
	return UnsupportedDataTypeError{message: message}
}

func (u UnsupportedDataTypeError) Error() string {
	return u.message
}

func IsUnsupportedDataTypeError(err error) bool {
	return errors.As(err, &UnsupportedDataTypeError{})
}

// CastError is returned when a value cannot be converted into a column's kind.
type CastError struct {
	Column string
	Kind   KindDetails
	Value  any
	err    error
}

func (c CastError) Error() string {
	if c.err != nil {
		return "failed to cast column " + c.Column + " to " + c.Kind.Kind + ": " + c.err.Error()
	}

	return "failed to cast column " + c.Column + " to " + c.Kind.Kind
}

func (c CastError) Unwrap() error {
	return c.err
}
