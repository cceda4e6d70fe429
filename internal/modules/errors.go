// Package modules contains the business methods exposed through the dispatcher,
// grouped by area: sessions, permissions, users and system.
package modules

import (
	"errors"

	apperrors "github.com/target/mmk-rpc-api/internal/errors"
	"github.com/target/mmk-rpc-api/internal/domain/rpc"
)

// failure turns a service error into a handler result. Errors that carry a message
// meant for the caller become unsuccessful responses. Anything else is returned as a
// fault so the pipeline logs it and answers METHOD_ERROR.
func failure(err error) (rpc.Response, error) {
	if apperrors.IsClientFacing(err) {
		return rpc.Fail(apperrors.GetMessage(err)), nil
	}
	return rpc.Response{}, err
}

// failureKind is failure with an error kind for sentinel matches.
func failureKind(err error, kinds map[error]rpc.ErrorKind) (rpc.Response, error) {
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return rpc.FailKind(kind, sentinel.Error()), nil
		}
	}
	return failure(err)
}
