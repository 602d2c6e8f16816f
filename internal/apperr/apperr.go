// Package apperr classifies failures from the spreadsheet, generator and
// storage layers so that callers can report them consistently.
package apperr

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind is a coarse error category. Values are stable on the wire.
type Kind string

const (
	KindAPI        Kind = "API_ERROR"
	KindNetwork    Kind = "NETWORK_ERROR"
	KindStorage    Kind = "STORAGE_ERROR"
	KindValidation Kind = "VALIDATION_ERROR"
	KindAuth       Kind = "AUTH_ERROR"
	KindUnknown    Kind = "UNKNOWN_ERROR"
)

// MaxRetryAttempts bounds ShouldRetry. Batch pipelines never retry rows.
const MaxRetryAttempts = 3

var retryable = map[Kind]bool{
	KindNetwork: true,
	KindAPI:     true,
}

// Error is a categorized error. Msg is human facing; Op names the failing
// operation and is optional.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Msg
	if e.Op != "" && msg == "" {
		msg = e.Op
	}
	if e.Err != nil {
		if msg == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind without a cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a kind and message to err. A nil err yields nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Validation is shorthand for a validation error.
func Validation(msg string) *Error {
	return New(KindValidation, msg)
}

// KindOf returns the kind of the first *Error in err's chain, falling back
// to Categorize when none is present.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	return Categorize(err)
}

// Categorize guesses a kind from the error value and its message.
func Categorize(err error) Kind {
	if err == nil {
		return ""
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "network") || strings.Contains(msg, "fetch") ||
		strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return KindNetwork
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "unauthorized"):
		return KindAuth
	case strings.Contains(msg, "api") || strings.Contains(msg, "server"):
		return KindAPI
	case strings.Contains(msg, "storage") || strings.Contains(msg, "quota"):
		return KindStorage
	case strings.Contains(msg, "validation") || strings.Contains(msg, "invalid"):
		return KindValidation
	}
	return KindUnknown
}

// Retryable reports whether errors of kind are worth retrying at all.
func Retryable(kind Kind) bool {
	return retryable[kind]
}

// ShouldRetry reports whether another attempt is allowed after
// currentAttempt attempts have failed with kind.
func ShouldRetry(kind Kind, currentAttempt int) bool {
	return Retryable(kind) && currentAttempt < MaxRetryAttempts
}

// UserMessage returns the message shown to end users for kind.
func UserMessage(kind Kind) string {
	switch kind {
	case KindAPI:
		return "서비스에 일시적인 문제가 발생했습니다. 잠시 후 다시 시도해주세요."
	case KindNetwork:
		return "네트워크 연결을 확인하고 다시 시도해주세요."
	case KindStorage:
		return "데이터 저장 중 문제가 발생했습니다."
	case KindValidation:
		return "입력된 정보를 확인해주세요."
	case KindAuth:
		return "Google 계정 인증을 확인해주세요."
	default:
		return "알 수 없는 오류가 발생했습니다."
	}
}

// HTTPStatus maps kind to a response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindAPI, KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
