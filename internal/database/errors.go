package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
	ErrorClassUniqueViolation
	ErrorClassForeignKeyViolation
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		case codeUniqueViolation:
			return ErrorClassUniqueViolation
		case codeForeignKeyViolation:
			return ErrorClassForeignKeyViolation
		case "23502", "23514":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

func IsUniqueViolation(err error) bool {
	return ClassifyError(err) == ErrorClassUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	return ClassifyError(err) == ErrorClassForeignKeyViolation
}

var (
	ErrValidation        = errors.New("validation error")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrNotFound          = errors.New("not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrLockTimeout       = errors.New("lock timeout")
)

// Specialised errors that also match their broader class with errors.Is.
var (
	ErrProductNotFound    error = &kindError{msg: "product not found", kind: ErrNotFound}
	ErrCategoryNotFound   error = &kindError{msg: "category not found", kind: ErrNotFound}
	ErrSaleNotFound       error = &kindError{msg: "sale not found", kind: ErrNotFound}
	ErrInsufficientTender error = &kindError{msg: "tendered amount is less than total", kind: ErrValidation}
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.kind }
