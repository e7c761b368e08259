package errutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type BaseError struct {
	Code    CoreStatus `json:"code"`
	Message string     `json:"message"`
	Details []Detail   `json:"details,omitempty"`
	Err     error      `json:"-"`
}

func (e BaseError) Status() CoreStatus {
	return e.Code
}

func (e BaseError) URL() string {
	values := url.Values{}

	values.Set("error_code", string(e.Code))
	values.Set("error_message", e.Message)

	for _, d := range e.Details {
		values.Set("details["+strings.TrimSpace(d.Field)+"]", d.Message)
	}

	return values.Encode()
}

func (e BaseError) JSON() interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":    e.Code,
			"message": e.messageWithErr(),
			"details": e.Details,
		},
	}
}

func (e BaseError) Unwrap() error {
	return e.Err
}

func (e BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.messageWithErr())
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e BaseError) messageWithErr() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

type Option func(*BaseError)

func WithDetails(details ...Detail) Option {
	return func(be *BaseError) { be.Details = details }
}

func WithErr(err error) Option {
	return func(be *BaseError) {
		if err != nil {
			be.Err = err
		}
	}
}

func New(code CoreStatus, message string, opts ...Option) error {
	be := BaseError{Code: code, Message: message}
	for _, opt := range opts {
		opt(&be)
	}
	return be
}

// StatusOf reports the CoreStatus carried by err, StatusInternal otherwise.
func StatusOf(err error) CoreStatus {
	var be BaseError
	if errors.As(err, &be) {
		return be.Code
	}
	return StatusInternal
}

// IsNotFound reports whether err is a BaseError with StatusNotFound.
func IsNotFound(err error) bool {
	var be BaseError
	return errors.As(err, &be) && be.Code == StatusNotFound
}

func NotFound(msg string, err error, options ...Option) error {
	return New(StatusNotFound, msg, append(options, WithErr(err))...)
}

func UnprocessableEntity(msg string, err error, options ...Option) error {
	return New(StatusUnprocessableEntity, msg, append(options, WithErr(err))...)
}

func UnsupportedMediaType(msg string, err error, options ...Option) error {
	return New(StatusUnsupportedMediaType, msg, append(options, WithErr(err))...)
}

func Conflict(msg string, err error, options ...Option) error {
	return New(StatusConflict, msg, append(options, WithErr(err))...)
}

func BadRequest(msg string, err error, options ...Option) error {
	return New(StatusBadRequest, msg, append(options, WithErr(err))...)
}

func ValidationFailed(msg string, err error, options ...Option) error {
	return New(StatusValidationFailed, msg, append(options, WithErr(err))...)
}

func Internal(msg string, err error, options ...Option) error {
	return New(StatusInternal, msg, append(options, WithErr(err))...)
}

func Timeout(msg string, err error, options ...Option) error {
	return New(StatusTimeout, msg, append(options, WithErr(err))...)
}

func Unauthorized(msg string, err error, options ...Option) error {
	return New(StatusUnauthorized, msg, append(options, WithErr(err))...)
}

func Forbidden(msg string, err error, options ...Option) error {
	return New(StatusForbidden, msg, append(options, WithErr(err))...)
}

func TooManyRequest(msg string, err error, options ...Option) error {
	return New(StatusTooManyRequests, msg, append(options, WithErr(err))...)
}

func ClientClosedRequest(msg string, err error, options ...Option) error {
	return New(StatusClientClosedRequest, msg, append(options, WithErr(err))...)
}

func NotImplemented(msg string, err error, options ...Option) error {
	return New(StatusNotImplemented, msg, append(options, WithErr(err))...)
}

func BadGateway(msg string, err error, options ...Option) error {
	return New(StatusBadGateway, msg, append(options, WithErr(err))...)
}

func ServiceUnavailable(msg string, err error, options ...Option) error {
	return New(StatusServiceUnavailable, msg, append(options, WithErr(err))...)
}
