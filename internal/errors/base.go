// Package errors layers short context messages onto errors while keeping
// the original reachable through errors.Is and errors.Unwrap.
package errors

import "errors"

// New returns an error with the given text.
func New(text string) error {
	return errors.New(text)
}

// Wrap prefixes err with text. A nil err stays nil and an empty text
// returns err unchanged, so call sites never need to guard.
func Wrap(err error, text string) error {
	if err == nil {
		return nil
	}
	if text == "" {
		return err
	}
	return &wrappedError{err: err, msg: text}
}

const sep = ", err: "

// wrappedError always holds a non-nil err; Wrap is the only constructor.
type wrappedError struct {
	err error
	msg string
}

func (w *wrappedError) Error() string {
	return w.msg + sep + w.err.Error()
}

func (w *wrappedError) Unwrap() error {
	return w.err
}
