package domain

import "errors"

var (
	ErrVillainNotFound = errors.New("villain not found among characters")
	ErrEmptySetup      = errors.New("setup contained no characters")
)
