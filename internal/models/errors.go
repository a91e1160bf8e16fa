package models

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrParse ErrorType = iota
	ErrBuildTool
	ErrBuild
	ErrChecksumConflict
	ErrCycle
	ErrFileOp
	ErrInvalidConfig
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrParse:
		return "Parse"
	case ErrBuildTool:
		return "BuildTool"
	case ErrBuild:
		return "Build"
	case ErrChecksumConflict:
		return "ChecksumConflict"
	case ErrCycle:
		return "Cycle"
	case ErrFileOp:
		return "FileOp"
	case ErrInvalidConfig:
		return "InvalidConfig"
	default:
		return "Unknown"
	}
}

// Error represents an error raised while preparing, building or fixing
// packages. Package holds the package base the error belongs to, if any.
type Error struct {
	Type    ErrorType
	Package string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Package, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error of the given type.
func NewError(t ErrorType, pkgbase string, err error) *Error {
	return &Error{Type: t, Package: pkgbase, Err: err}
}

// IsType reports whether any error in err's tree is an *Error of type t.
// Joined errors are searched as well.
func IsType(err error, t ErrorType) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) && e.Type == t {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if IsType(inner, t) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return IsType(x.Unwrap(), t)
	}
	return false
}
