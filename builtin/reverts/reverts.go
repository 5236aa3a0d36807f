// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reverts

import (
	"errors"
	"fmt"
)

// Kind classifies why a builtin call reverted.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindUnauthorized caller lacks the required role.
	KindUnauthorized
	// KindState operation is not valid in the current lifecycle state.
	KindState
	// KindInvalid arguments or an arithmetic guard failed.
	KindInvalid
	// KindExternal a collaborator failed. Retriable by resubmitting.
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindState:
		return "state"
	case KindInvalid:
		return "invalid"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// ErrRevert aborts the enclosing transaction with a reason.
type ErrRevert struct {
	kind    Kind
	message string
}

func New(message string) *ErrRevert {
	return &ErrRevert{kind: KindState, message: message}
}

func Unauthorized(format string, args ...any) *ErrRevert {
	return &ErrRevert{kind: KindUnauthorized, message: fmt.Sprintf(format, args...)}
}

func State(format string, args ...any) *ErrRevert {
	return &ErrRevert{kind: KindState, message: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) *ErrRevert {
	return &ErrRevert{kind: KindInvalid, message: fmt.Sprintf(format, args...)}
}

func External(format string, args ...any) *ErrRevert {
	return &ErrRevert{kind: KindExternal, message: fmt.Sprintf(format, args...)}
}

func (e *ErrRevert) Error() string {
	return e.message
}

func (e *ErrRevert) Kind() Kind {
	return e.kind
}

// Is matches reverts of the same kind and message, so package level reverts work as sentinels.
func (e *ErrRevert) Is(target error) bool {
	t, ok := target.(*ErrRevert)
	if !ok {
		return false
	}
	return t.kind == e.kind && t.message == e.message
}

func IsRevertErr(err any) bool {
	if err == nil {
		return false
	}
	e, ok := err.(error)
	if !ok {
		return false
	}
	var ve *ErrRevert
	if errors.As(e, &ve) {
		return ve != nil
	}
	return false
}

// KindOf returns the kind of the revert wrapped in err, KindUnknown for other errors.
func KindOf(err error) Kind {
	var ve *ErrRevert
	if errors.As(err, &ve) && ve != nil {
		return ve.kind
	}
	return KindUnknown
}
