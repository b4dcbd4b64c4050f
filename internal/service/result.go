package service

import (
	"errors"

	"github.com/sakif/storefront/internal/apperror"
	"github.com/sakif/storefront/internal/model"
)

// ErrorKind classifies a failed session operation.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindValidation         ErrorKind = "validation"
	KindConflict           ErrorKind = "conflict"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindPersistence        ErrorKind = "persistence"
	KindInternal           ErrorKind = "internal"
)

// Result is what every session operation returns instead of an error: either
// OK with the signed-in account, or a failure kind with a user-facing message.
type Result struct {
	OK      bool
	Kind    ErrorKind
	Message string
	// Notice is an optional friendlier line for a toast ("Welcome back, Ann!").
	Notice  string
	Account *model.Account
}

func success(account *model.Account, message, notice string) Result {
	return Result{OK: true, Message: message, Notice: notice, Account: account}
}

// failure turns err into a Result. AppError messages are passed through
// verbatim; anything else gets fallback.
func failure(err error, fallback string) Result {
	kind := kindOf(err)

	msg := fallback
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && kind != KindInternal {
		msg = appErr.Message
	}
	return Result{Kind: kind, Message: msg}
}

func kindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, apperror.ErrValidation):
		return KindValidation
	case errors.Is(err, apperror.ErrConflict):
		return KindConflict
	case errors.Is(err, apperror.ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, apperror.ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, apperror.ErrPersistence):
		return KindPersistence
	default:
		return KindInternal
	}
}
