package service

import (
	"errors"
	"fmt"
)

// Kind 错误分类，控制器据此映射 HTTP 状态码
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindInsufficientFunds
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	}
	return "internal"
}

// Error 业务错误
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is 同类错误匹配：errors.Is(err, ErrConflict) 对任意 Conflict 成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds, Msg: "insufficient funds"}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrInternal          = &Error{Kind: KindInternal}

	ErrDuplicateInFlight   = &Error{Kind: KindConflict, Msg: "duplicate request in flight"}
	ErrFingerprintMismatch = &Error{Kind: KindConflict, Msg: "idempotency key reused with a different request"}
	ErrAlreadySettled      = &Error{Kind: KindConflict, Msg: "bet already settled"}
	ErrActionReplayed      = &Error{Kind: KindConflict, Msg: "manual action already applied"}
	ErrInvalidSignature    = &Error{Kind: KindUnauthorized, Msg: "invalid webhook signature"}
)

func invalidInput(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

func notFound(what string) error {
	return &Error{Kind: KindNotFound, Msg: what + " not found"}
}

func internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf 返回错误分类，非业务错误视为 Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
