package model

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrVaultFull         = errors.New("vault full")
	ErrUnknownVault      = errors.New("unknown vault")
	ErrVaultTypeMismatch = errors.New("vault type mismatch")
)
