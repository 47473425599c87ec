package transform

import "errors"

// Sentinel errors for expression handling
var (
	ErrInvalidExpression = errors.New("invalid expression")
	ErrUnsafeExpression  = errors.New("unsafe operation in expression")
	ErrUndefinedVariable = errors.New("undefined variable in expression")
)
