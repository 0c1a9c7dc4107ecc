package apperrors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrBuildInProgress     = errors.New("catalog build already in progress")
	ErrMissingParameter    = errors.New("missing parameter")
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrRoleUnresolved      = errors.New("table role could not be resolved")
	ErrNoDescriptiveColumn = errors.New("purchase-order table has no descriptive column")
	ErrUnsupportedFile     = errors.New("unsupported file type")
)
