package errutil

import "net/http"

type CoreStatus string

const (
	StatusUnknown              CoreStatus = "unknown"
	StatusBadRequest           CoreStatus = "bad_request"
	StatusValidationFailed     CoreStatus = "validation_failed"
	StatusUnauthorized         CoreStatus = "unauthorized"
	StatusForbidden            CoreStatus = "forbidden"
	StatusNotFound             CoreStatus = "not_found"
	StatusConflict             CoreStatus = "conflict"
	StatusUnprocessableEntity  CoreStatus = "unprocessable_entity"
	StatusUnsupportedMediaType CoreStatus = "unsupported_media_type"
	StatusTooManyRequests      CoreStatus = "too_many_requests"
	StatusClientClosedRequest  CoreStatus = "client_closed_request"
	StatusInternal             CoreStatus = "internal"
	StatusNotImplemented       CoreStatus = "not_implemented"
	StatusBadGateway           CoreStatus = "bad_gateway"
	StatusServiceUnavailable   CoreStatus = "service_unavailable"
	StatusTimeout              CoreStatus = "timeout"
	StatusGatewayTimeout       CoreStatus = "gateway_timeout"
)

// HTTPStatus converts the CoreStatus to the status code written by the HTTP layer.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusValidationFailed, StatusUnprocessableEntity:
		return http.StatusUnprocessableEntity
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusForbidden:
		return http.StatusForbidden
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case StatusTooManyRequests:
		return http.StatusTooManyRequests
	case StatusClientClosedRequest:
		return 499
	case StatusNotImplemented:
		return http.StatusNotImplemented
	case StatusBadGateway:
		return http.StatusBadGateway
	case StatusServiceUnavailable:
		return http.StatusServiceUnavailable
	case StatusTimeout:
		return http.StatusRequestTimeout
	case StatusGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
