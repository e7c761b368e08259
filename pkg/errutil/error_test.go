package errutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNotFoundKeepsCause(t *testing.T) {
	cause := errors.New("record not found")
	err := NotFound("User not found", cause)

	require.True(t, IsNotFound(err))
	require.ErrorIs(t, err, cause)
	require.Equal(t, StatusNotFound, StatusOf(err))
	require.Equal(t, http.StatusNotFound, StatusOf(err).HTTPStatus())
}

func TestStatusOfWrapped(t *testing.T) {
	err := fmt.Errorf("query: %w", BadRequest("User ID is required", nil))

	require.Equal(t, StatusBadRequest, StatusOf(err))
	require.False(t, IsNotFound(err))
	require.Equal(t, StatusInternal, StatusOf(errors.New("boom")))
}

func TestJSONBody(t *testing.T) {
	var be BaseError
	require.True(t, errors.As(BadGateway("sync failed", errors.New("dial tcp: refused")), &be))

	body, ok := be.JSON().(map[string]interface{})
	require.True(t, ok)
	inner := body["error"].(map[string]interface{})
	require.Equal(t, StatusBadGateway, inner["code"])
	require.Equal(t, "sync failed: dial tcp: refused", inner["message"])
}

func TestToGRPCError(t *testing.T) {
	require.Nil(t, ToGRPCError(nil))
	require.Equal(t, codes.NotFound, status.Code(ToGRPCError(NotFound("missing", nil))))
	require.Equal(t, codes.InvalidArgument, status.Code(ToGRPCError(BadRequest("bad", nil))))
	require.Equal(t, codes.Canceled, status.Code(ToGRPCError(context.Canceled)))
	require.Equal(t, codes.Internal, status.Code(ToGRPCError(errors.New("boom"))))
}
