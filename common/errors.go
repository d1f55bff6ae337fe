package common

import "errors"

// Error is a constant error. Every failure surfaced by the filesystem wraps
// exactly one of the kinds below.
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNotFound Error = "no such file or directory"
	ErrNotDir   Error = "not a directory"
	ErrIsDir    Error = "is a directory"
	ErrExist    Error = "file exists"
	ErrInval    Error = "invalid argument"
	ErrIO       Error = "input/output error"
)

var kinds = []Error{ErrNotFound, ErrNotDir, ErrIsDir, ErrExist, ErrInval, ErrIO}

// Kind reports the abstract kind of err. Errors that wrap none of the kinds
// come from the device and are reported as ErrIO; nil reports "".
func Kind(err error) Error {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrIO
}
