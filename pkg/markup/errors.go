package markup

import (
	"errors"
	"fmt"
)

// ErrMalformedMarkup is matched by every error the parser returns
var ErrMalformedMarkup = errors.New("malformed markup")

// SyntaxError reports where the parser gave up
type SyntaxError struct {
	File   string
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrMalformedMarkup
}
