// Package errors provides a structured error system for passthroughfs with error codes,
// categories, and the POSIX errno each error is reported as.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"syscall"
	"time"
)

// ErrorCode represents a structured error code for passthroughfs operations.
type ErrorCode string

// Error code constants grouped by category.
const (
	// Path resolution errors
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeNotDirectory ErrorCode = "NOT_DIRECTORY"
	ErrCodeIsDirectory  ErrorCode = "IS_DIRECTORY"
	ErrCodeExists       ErrorCode = "EXISTS"
	ErrCodeNotEmpty     ErrorCode = "NOT_EMPTY"
	ErrCodeNameTooLong  ErrorCode = "NAME_TOO_LONG"
	ErrCodeLinkLoop     ErrorCode = "LINK_LOOP"
	ErrCodeCrossDevice  ErrorCode = "CROSS_DEVICE"

	// Permission errors
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrCodeNotPermitted     ErrorCode = "NOT_PERMITTED"
	ErrCodeReadOnly         ErrorCode = "READ_ONLY"

	// Resource exhaustion errors
	ErrCodeNoSpace          ErrorCode = "NO_SPACE"
	ErrCodeQuotaExceeded    ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeTooManyOpenFiles ErrorCode = "TOO_MANY_OPEN_FILES"
	ErrCodeOutOfMemory      ErrorCode = "OUT_OF_MEMORY"

	// I/O errors
	ErrCodeIO ErrorCode = "IO_ERROR"

	// Invalid argument errors
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	ErrCodeBadHandle       ErrorCode = "BAD_HANDLE"

	// Configuration and mount errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrCodeMountFailed   ErrorCode = "MOUNT_FAILED"
	ErrCodeUnmountFailed ErrorCode = "UNMOUNT_FAILED"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryPathResolution  ErrorCategory = "path_resolution"
	CategoryPermission      ErrorCategory = "permission"
	CategoryResource        ErrorCategory = "resource"
	CategoryIO              ErrorCategory = "io"
	CategoryInvalidArgument ErrorCategory = "invalid_argument"
	CategoryConfiguration   ErrorCategory = "configuration"
	CategoryMount           ErrorCategory = "mount"
)

var codeCategories = map[ErrorCode]ErrorCategory{
	ErrCodeNotFound:         CategoryPathResolution,
	ErrCodeNotDirectory:     CategoryPathResolution,
	ErrCodeIsDirectory:      CategoryPathResolution,
	ErrCodeExists:           CategoryPathResolution,
	ErrCodeNotEmpty:         CategoryPathResolution,
	ErrCodeNameTooLong:      CategoryPathResolution,
	ErrCodeLinkLoop:         CategoryPathResolution,
	ErrCodeCrossDevice:      CategoryPathResolution,
	ErrCodePermissionDenied: CategoryPermission,
	ErrCodeNotPermitted:     CategoryPermission,
	ErrCodeReadOnly:         CategoryPermission,
	ErrCodeNoSpace:          CategoryResource,
	ErrCodeQuotaExceeded:    CategoryResource,
	ErrCodeTooManyOpenFiles: CategoryResource,
	ErrCodeOutOfMemory:      CategoryResource,
	ErrCodeIO:               CategoryIO,
	ErrCodeInvalidArgument:  CategoryInvalidArgument,
	ErrCodeBadHandle:        CategoryInvalidArgument,
	ErrCodeInvalidConfig:    CategoryConfiguration,
	ErrCodeConfigLoad:       CategoryConfiguration,
	ErrCodeMountFailed:      CategoryMount,
	ErrCodeUnmountFailed:    CategoryMount,
}

// errnoCodes maps backend errno values onto error codes. Errnos missing
// from the table are reported as ErrCodeIO but keep their original value.
var errnoCodes = map[syscall.Errno]ErrorCode{
	syscall.ENOENT:       ErrCodeNotFound,
	syscall.ENOTDIR:      ErrCodeNotDirectory,
	syscall.EISDIR:       ErrCodeIsDirectory,
	syscall.EEXIST:       ErrCodeExists,
	syscall.ENOTEMPTY:    ErrCodeNotEmpty,
	syscall.ENAMETOOLONG: ErrCodeNameTooLong,
	syscall.ELOOP:        ErrCodeLinkLoop,
	syscall.EXDEV:        ErrCodeCrossDevice,
	syscall.EACCES:       ErrCodePermissionDenied,
	syscall.EPERM:        ErrCodeNotPermitted,
	syscall.EROFS:        ErrCodeReadOnly,
	syscall.ENOSPC:       ErrCodeNoSpace,
	syscall.EDQUOT:       ErrCodeQuotaExceeded,
	syscall.EMFILE:       ErrCodeTooManyOpenFiles,
	syscall.ENFILE:       ErrCodeTooManyOpenFiles,
	syscall.ENOMEM:       ErrCodeOutOfMemory,
	syscall.EIO:          ErrCodeIO,
	syscall.EINVAL:       ErrCodeInvalidArgument,
	syscall.EBADF:        ErrCodeBadHandle,
}

// codeErrnos is the errno reported for errors created from a code rather
// than from a backend failure.
var codeErrnos = map[ErrorCode]syscall.Errno{
	ErrCodeNotFound:         syscall.ENOENT,
	ErrCodeNotDirectory:     syscall.ENOTDIR,
	ErrCodeIsDirectory:      syscall.EISDIR,
	ErrCodeExists:           syscall.EEXIST,
	ErrCodeNotEmpty:         syscall.ENOTEMPTY,
	ErrCodeNameTooLong:      syscall.ENAMETOOLONG,
	ErrCodeLinkLoop:         syscall.ELOOP,
	ErrCodeCrossDevice:      syscall.EXDEV,
	ErrCodePermissionDenied: syscall.EACCES,
	ErrCodeNotPermitted:     syscall.EPERM,
	ErrCodeReadOnly:         syscall.EROFS,
	ErrCodeNoSpace:          syscall.ENOSPC,
	ErrCodeQuotaExceeded:    syscall.EDQUOT,
	ErrCodeTooManyOpenFiles: syscall.EMFILE,
	ErrCodeOutOfMemory:      syscall.ENOMEM,
	ErrCodeIO:               syscall.EIO,
	ErrCodeInvalidArgument:  syscall.EINVAL,
	ErrCodeBadHandle:        syscall.EBADF,
	ErrCodeInvalidConfig:    syscall.EINVAL,
	ErrCodeConfigLoad:       syscall.EINVAL,
	ErrCodeMountFailed:      syscall.EIO,
	ErrCodeUnmountFailed:    syscall.EIO,
}

// FSError represents a structured error with context and metadata.
type FSError struct {
	Code     ErrorCode     `json:"code"`
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`
	Errno    syscall.Errno `json:"errno"`

	Path      string            `json:"path,omitempty"`
	Component string            `json:"component,omitempty"`
	Operation string            `json:"operation,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`
}

// Error implements the error interface.
func (e *FSError) Error() string {
	var b strings.Builder
	if e.Component != "" {
		b.WriteString("[")
		b.WriteString(e.Component)
		if e.Operation != "" {
			b.WriteString(":")
			b.WriteString(e.Operation)
		}
		b.WriteString("] ")
	} else if e.Operation != "" {
		b.WriteString(e.Operation)
		b.WriteString(" ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *FSError) Unwrap() error {
	return e.Cause
}

// Is reports a match on another *FSError with the same code, or on the
// syscall.Errno the error is reported as.
func (e *FSError) Is(target error) bool {
	switch t := target.(type) {
	case *FSError:
		return e.Code == t.Code
	case syscall.Errno:
		return e.Errno == t
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *FSError) String() string {
	parts := []string{
		fmt.Sprintf("Code=%s", e.Code),
		fmt.Sprintf("Category=%s", e.Category),
		fmt.Sprintf("Errno=%d", int(e.Errno)),
		fmt.Sprintf("Message=%q", e.Message),
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("Path=%s", e.Path))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}
	return fmt.Sprintf("FSError{%s}", strings.Join(parts, ", "))
}

// NewError creates a new error for the given code.
func NewError(code ErrorCode, message string) *FSError {
	errno, ok := codeErrnos[code]
	if !ok {
		errno = syscall.EIO
	}
	return &FSError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Errno:     errno,
		Context:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// GetCategory returns the category of an error code. Unknown codes are I/O errors.
func GetCategory(code ErrorCode) ErrorCategory {
	if category, ok := codeCategories[code]; ok {
		return category
	}
	return CategoryIO
}

// CodeForErrno returns the error code a backend errno is reported under.
func CodeForErrno(errno syscall.Errno) ErrorCode {
	if code, ok := errnoCodes[errno]; ok {
		return code
	}
	return ErrCodeIO
}

// FromSyscall wraps a failed backend call. It returns nil when err is nil.
// The errno carried by err is preserved; errors that carry none become EIO.
func FromSyscall(operation, path string, err error) error {
	if err == nil {
		return nil
	}

	var fsErr *FSError
	if stderrors.As(err, &fsErr) {
		return fsErr
	}

	errno := syscall.EIO
	var sysErr syscall.Errno
	if stderrors.As(err, &sysErr) && sysErr != 0 {
		errno = sysErr
	}

	return &FSError{
		Code:      CodeForErrno(errno),
		Category:  GetCategory(CodeForErrno(errno)),
		Message:   errno.Error(),
		Errno:     errno,
		Path:      path,
		Operation: operation,
		Cause:     err,
		Timestamp: time.Now(),
	}
}

// Errno extracts the POSIX errno an error should be reported as. A nil
// error yields 0; errors carrying no errno yield EIO.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var fsErr *FSError
	if stderrors.As(err, &fsErr) && fsErr.Errno != 0 {
		return fsErr.Errno
	}
	var errno syscall.Errno
	if stderrors.As(err, &errno) && errno != 0 {
		return errno
	}
	return syscall.EIO
}

// WithContext adds contextual information to an error
func (e *FSError) WithContext(key, value string) *FSError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *FSError) WithComponent(component string) *FSError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *FSError) WithOperation(operation string) *FSError {
	e.Operation = operation
	return e
}

// WithPath sets the virtual path the error refers to
func (e *FSError) WithPath(path string) *FSError {
	e.Path = path
	return e
}

// WithCause sets the underlying cause
func (e *FSError) WithCause(cause error) *FSError {
	e.Cause = cause
	return e
}
