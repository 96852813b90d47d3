package fridge

import (
	"errors"
	"syscall"
)

// Sentinel errors, every error returned by a Fridge wraps exactly one of them
var (
	ErrInvalidFlag      = errors.New("invalid flag")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrInterrupted      = errors.New("interrupted")
	ErrOutOfMemory      = errors.New("out of memory")
	ErrIO               = errors.New("input/output error")
)

// Kind of failure, stable across the wire
type Kind string

const (
	KindNone             Kind = ""
	KindInvalidFlag      Kind = "InvalidFlag"
	KindInvalidArgument  Kind = "InvalidArgument"
	KindPermissionDenied Kind = "PermissionDenied"
	KindNotFound         Kind = "NotFound"
	KindInterrupted      Kind = "Interrupted"
	KindOutOfMemory      Kind = "OutOfMemory"
	KindIO               Kind = "IO"
)

var kinds = []struct {
	kind  Kind
	err   error
	errno syscall.Errno
}{
	{KindInvalidFlag, ErrInvalidFlag, syscall.EINVAL},
	{KindInvalidArgument, ErrInvalidArgument, syscall.EINVAL},
	{KindPermissionDenied, ErrPermissionDenied, syscall.EPERM},
	{KindNotFound, ErrNotFound, syscall.ENOENT},
	{KindInterrupted, ErrInterrupted, syscall.EINTR},
	{KindOutOfMemory, ErrOutOfMemory, syscall.ENOMEM},
	{KindIO, ErrIO, syscall.EIO},
}

// Classify an error returned by a Fridge. Errors foreign to the store are
// reported as KindIO.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindIO
}

// Sentinel error of the kind, nil for KindNone or an unknown kind
func (k Kind) Err() error {
	for _, kk := range kinds {
		if kk.kind == k {
			return kk.err
		}
	}
	return nil
}

// Errno a syscall-style caller sees for this kind, also the exit code of the kkv CLI
func (k Kind) Errno() syscall.Errno {
	for _, kk := range kinds {
		if kk.kind == k {
			return kk.errno
		}
	}
	return 0
}

func (k Kind) String() string {
	return string(k)
}
