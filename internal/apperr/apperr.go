// Package apperr — виды ошибок, которые возвращают операции движка.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind int

const (
	KindStorage Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "storage"
	}
}

// Error — типизированная ошибка движка. Fields заполняется только для
// ошибок валидации: поле -> описание проблемы.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", k, e.Fields[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Invalid — ошибка валидации одного поля.
func Invalid(field, problem string) *Error {
	return Validation("invalid input", map[string]string{field: problem})
}

func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Message: "storage failure", Err: err}
}

// From — err как *Error; нетипизированные ошибки считаются ошибками хранилища.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Storage(err)
}

// KindOf — вид ошибки err.
func KindOf(err error) Kind {
	return From(err).Kind
}

func IsNotFound(err error) bool   { return err != nil && KindOf(err) == KindNotFound }
func IsForbidden(err error) bool  { return err != nil && KindOf(err) == KindForbidden }
func IsConflict(err error) bool   { return err != nil && KindOf(err) == KindConflict }
func IsValidation(err error) bool { return err != nil && KindOf(err) == KindValidation }
