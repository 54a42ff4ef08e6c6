package tracked

import "fmt"

// ErrorCode identifies the kind of invalid usage. Values are stable and
// appear in error messages.
type ErrorCode int

const (
	CodeInitStateToValueFromState ErrorCode = 101
	CodeSetStateToValueFromState  ErrorCode = 102
	CodeGetStateWhenPromised      ErrorCode = 103
	CodeSetStateWhenPromised      ErrorCode = 104
	CodeSetStateNestedToPromised  ErrorCode = 105
	CodeSetStateWhenDestroyed     ErrorCode = 106
	CodePathNotContainer          ErrorCode = 107
	CodeToJSONValue               ErrorCode = 108
	CodeToJSONState               ErrorCode = 109
	CodeGetUnknownPlugin          ErrorCode = 120
	CodeSetPropertyState          ErrorCode = 201
	CodeSetPropertyValue          ErrorCode = 202
	CodeDeletePropertyState       ErrorCode = 209
	CodeDeletePropertyValue       ErrorCode = 210
)

var codeNames = map[ErrorCode]string{
	CodeInitStateToValueFromState: "init state to value from state",
	CodeSetStateToValueFromState:  "set state to value from state",
	CodeGetStateWhenPromised:      "read while root is pending",
	CodeSetStateWhenPromised:      "set while root is pending",
	CodeSetStateNestedToPromised:  "nested promise not supported",
	CodeSetStateWhenDestroyed:     "used after destroyed",
	CodePathNotContainer:          "path does not address a container",
	CodeToJSONValue:               "value view cannot be serialized",
	CodeToJSONState:               "state cannot be serialized",
	CodeGetUnknownPlugin:          "unknown plugin requested",
	CodeSetPropertyState:          "property write on state",
	CodeSetPropertyValue:          "property write on value",
	CodeDeletePropertyState:       "property delete on state",
	CodeDeletePropertyValue:       "property delete on value",
}

func (c ErrorCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("code %d", int(c))
}

// Error is the single failure type of the package. Two errors match with
// errors.Is when their codes are equal, so the Err* values below work as
// sentinels regardless of path or detail.
type Error struct {
	Path   Path
	Code   ErrorCode
	Detail string
}

func newError(path Path, code ErrorCode, detail ...string) *Error {
	e := &Error{Path: path, Code: code}
	if len(detail) > 0 {
		e.Detail = detail[0]
	}
	return e
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("statetree-%d [path: %s, details: %s]: %s", int(e.Code), e.Path, e.Detail, e.Code)
	}
	return fmt.Sprintf("statetree-%d [path: %s]: %s", int(e.Code), e.Path, e.Code)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrUsedAfterDestroyed        = &Error{Code: CodeSetStateWhenDestroyed}
	ErrReadWhilePending          = &Error{Code: CodeGetStateWhenPromised}
	ErrAssignStateToState        = &Error{Code: CodeSetStateToValueFromState}
	ErrInitStateToState          = &Error{Code: CodeInitStateToValueFromState}
	ErrSetWhileRootPending       = &Error{Code: CodeSetStateWhenPromised}
	ErrNestedPromiseNotSupported = &Error{Code: CodeSetStateNestedToPromised}
	ErrPathNotContainer          = &Error{Code: CodePathNotContainer}
	ErrUnknownPluginRequested    = &Error{Code: CodeGetUnknownPlugin}
	ErrSetPropertyState          = &Error{Code: CodeSetPropertyState}
	ErrSetPropertyValue          = &Error{Code: CodeSetPropertyValue}
	ErrDeletePropertyState       = &Error{Code: CodeDeletePropertyState}
	ErrDeletePropertyValue       = &Error{Code: CodeDeletePropertyValue}
	ErrToJSONState               = &Error{Code: CodeToJSONState}
	ErrToJSONValue               = &Error{Code: CodeToJSONValue}
)
