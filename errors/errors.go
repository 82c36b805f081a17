package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
)

var (
	ErrValidation       = fmt.Errorf("validation failed")
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrNotFound         = fmt.Errorf("not found")
	ErrStoreFailure     = fmt.Errorf("store failure")
	ErrUnauthenticated  = fmt.Errorf("identity could not be resolved")
	ErrRoomFull         = fmt.Errorf("room has reached its participant limit")
	ErrRoomArchived     = fmt.Errorf("room is archived")
	ErrUnknownOperation = fmt.Errorf("unknown operation")
	ErrInvalidToken     = fmt.Errorf("invalid or expired token")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrSinkFull         = fmt.Errorf("connection buffer is full")
	ErrSinkClosed       = fmt.Errorf("connection is closed")
	ErrIndexClosed      = fmt.Errorf("search index is closed")
	ErrEmptyWords       = fmt.Errorf("no censored words loaded")
)

// Code maps an error of this package to the closest gRPC canonical code.
// Acks and the health endpoint both speak this vocabulary.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case stderrors.Is(err, ErrValidation), stderrors.Is(err, ErrUnknownOperation):
		return codes.InvalidArgument
	case stderrors.Is(err, ErrPermissionDenied):
		return codes.PermissionDenied
	case stderrors.Is(err, ErrNotFound):
		return codes.NotFound
	case stderrors.Is(err, ErrUnauthenticated), stderrors.Is(err, ErrInvalidToken):
		return codes.Unauthenticated
	case stderrors.Is(err, ErrRoomFull):
		return codes.ResourceExhausted
	case stderrors.Is(err, ErrRoomArchived):
		return codes.FailedPrecondition
	case stderrors.Is(err, ErrStoreFailure):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// public lists the sentinels whose message may be shown to a client.
var public = []error{
	ErrPermissionDenied, ErrNotFound, ErrStoreFailure, ErrUnauthenticated,
	ErrInvalidToken, ErrRoomFull, ErrRoomArchived, ErrUnknownOperation,
}

// Message is the client-facing text of err. Validation failures keep their
// detail since it only describes the input; anything else is reduced to its
// sentinel so that store and library internals stay in the logs.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrValidation):
		return err.Error()
	}
	for _, sentinel := range public {
		if stderrors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}
