package errutil

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var grpcCodes = map[CoreStatus]codes.Code{
	StatusBadRequest:           codes.InvalidArgument,
	StatusValidationFailed:     codes.InvalidArgument,
	StatusUnsupportedMediaType: codes.InvalidArgument,
	StatusUnprocessableEntity:  codes.FailedPrecondition,
	StatusUnauthorized:         codes.Unauthenticated,
	StatusForbidden:            codes.PermissionDenied,
	StatusNotFound:             codes.NotFound,
	StatusConflict:             codes.AlreadyExists,
	StatusTooManyRequests:      codes.ResourceExhausted,
	StatusClientClosedRequest:  codes.Canceled,
	StatusNotImplemented:       codes.Unimplemented,
	StatusBadGateway:           codes.Unavailable,
	StatusServiceUnavailable:   codes.Unavailable,
	StatusTimeout:              codes.DeadlineExceeded,
	StatusGatewayTimeout:       codes.DeadlineExceeded,
	StatusInternal:             codes.Internal,
}

// GRPCCode is the gRPC counterpart of HTTPStatus.
func (s CoreStatus) GRPCCode() codes.Code {
	if c, ok := grpcCodes[s]; ok {
		return c
	}
	return codes.Unknown
}

// ToGRPCError turns any error returned by a handler into a status error.
// Existing status errors pass through untouched.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	var base BaseError
	if errors.As(err, &base) {
		return status.Error(base.Code.GRPCCode(), base.messageWithErr())
	}
	return status.Error(codes.Internal, err.Error())
}
