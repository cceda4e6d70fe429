// Package rpc defines method descriptors, the method registry and the response envelope
// shared by the execution pipeline, the multicall orchestrator and the transport.
package rpc

import (
	"fmt"

	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/domain/param"
)

// ErrorKind is the stable machine-readable code carried in failure envelopes.
type ErrorKind string

const (
	KindPermissionMissing   ErrorKind = "PERMISSION_MISSING"
	KindPermissionSession   ErrorKind = "PERMISSION_SESSION"
	KindPermissionNoSession ErrorKind = "PERMISSION_NO_SESSION"
	KindParamMissing        ErrorKind = ErrorKind(param.KindMissing)
	KindParamType           ErrorKind = ErrorKind(param.KindType)
	KindParamRange          ErrorKind = ErrorKind(param.KindRange)
	KindHandlerError        ErrorKind = "HANDLER_ERROR"
	KindMethodError         ErrorKind = "METHOD_ERROR"
	KindMethodUnknown       ErrorKind = "METHOD_UNKNOWN"
	KindMulticallError      ErrorKind = "MULTICALL_ERROR"

	// Business failures of the session methods.
	KindUserNotFound  ErrorKind = "USER_NOT_FOUND"
	KindUserInactive  ErrorKind = "USER_INACTIVE"
	KindWrongPassword ErrorKind = "WRONG_PASSWORD"
	KindTokenMissing  ErrorKind = "TOKEN_MISSING"
)

// SessionChange replaces the caller's session for the remainder of a multicall batch.
// A nil Session means the caller is now anonymous.
type SessionChange struct {
	Session *domainauth.Session
}

// Response is the uniform result envelope. Optional fields are omitted when empty.
type Response struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
	Code    ErrorKind      `json:"code,omitempty"`
	Token   string         `json:"token,omitempty"`
	Session *SessionChange `json:"-"`
}

// OK builds a success response. A nil data payload is omitted on the wire.
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Fail builds a failure response without an error kind.
func Fail(message string) Response {
	return Response{Message: message}
}

// Failf builds a failure response with a formatted message.
func Failf(format string, args ...any) Response {
	return Response{Message: fmt.Sprintf(format, args...)}
}

// FailKind builds a failure response carrying an error kind.
func FailKind(kind ErrorKind, message string) Response {
	return Response{Message: message, Code: kind}
}

// WithSession attaches a session mutation.
func (r Response) WithSession(s *domainauth.Session) Response {
	r.Session = &SessionChange{Session: s}
	return r
}

// WithToken attaches a reissued pre-auth token.
func (r Response) WithToken(token string) Response {
	r.Token = token
	return r
}

// Normalize strips fields that carry no meaning for the response's outcome.
func (r Response) Normalize() Response {
	if r.Success {
		r.Message = ""
		r.Code = ""
		r.Token = ""
		return r
	}
	r.Data = nil
	r.Session = nil
	return r
}
