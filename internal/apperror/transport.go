package apperror

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func grpcCode(kind Kind) codes.Code {
	switch kind {
	case KindValidation:
		return codes.InvalidArgument
	case KindIllegalTransition, KindInsufficientStock, KindConfirmationRequired:
		return codes.FailedPrecondition
	case KindConflict:
		return codes.Aborted
	case KindAuthorization:
		return codes.PermissionDenied
	case KindNotFound:
		return codes.NotFound
	case KindSaleLinkage:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// GRPCStatus converts err into a status error. Internal details are not leaked.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(grpcCode(e.Kind), string(e.Kind)+": "+e.Code+": "+e.Message)
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindIllegalTransition, KindConflict:
		return http.StatusConflict
	case KindInsufficientStock:
		return http.StatusUnprocessableEntity
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConfirmationRequired:
		return http.StatusPreconditionRequired
	case KindSaleLinkage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error payload returned by the REST gateway.
type Body struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func ToBody(err error) (int, Body) {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return http.StatusInternalServerError, Body{Kind: KindInternal, Code: "INTERNAL", Message: "internal error"}
	}
	return HTTPStatus(e.Kind), Body{Kind: e.Kind, Code: e.Code, Message: e.Message, Details: e.Details}
}
