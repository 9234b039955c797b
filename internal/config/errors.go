package config

import "github.com/pkg/errors"

var (
	// ErrNoRegions indicates a layout without system regions.
	ErrNoRegions = errors.New("config: layout has no regions")

	// ErrDuplicate indicates two regions or two pools with the same name.
	ErrDuplicate = errors.New("config: duplicate name")

	// ErrInvalid indicates a value that fails validation.
	ErrInvalid = errors.New("config: invalid value")
)
