package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexengrig/JDebugger/api"
)

// ErrorCode returns the wire code for err. Unclassified errors are I/O
// failures.
func ErrorCode(err error) api.ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIllegalArguments):
		return api.ErrorIllegalArguments
	case errors.Is(err, ErrVMStart):
		return api.ErrorVMStart
	case errors.Is(err, ErrDisconnected):
		return api.ErrorDisconnected
	}
	return api.ErrorIO
}

// ReplyError turns a failed reply back into an error matching the sentinel
// of its code. It returns nil for a successful reply.
func ReplyError(r *api.Reply) error {
	if r == nil || r.Code == "" {
		return nil
	}
	var sentinel error
	switch r.Code {
	case api.ErrorIllegalArguments:
		sentinel = ErrIllegalArguments
	case api.ErrorVMStart:
		sentinel = ErrVMStart
	case api.ErrorDisconnected:
		sentinel = ErrDisconnected
	default:
		return fmt.Errorf("%s: %s", r.Code, r.Error)
	}
	detail := strings.TrimPrefix(r.Error, sentinel.Error())
	detail = strings.TrimPrefix(detail, ": ")
	if detail == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, detail)
}
