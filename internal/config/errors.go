package config

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound      = errors.New("config: no valid configuration file found")
	ErrUnsupportedProtocol = errors.New("config: unsupported protocol")
)

// ParseError is returned when a config file exists but cannot be turned into a valid Config.
type ParseError struct {
	Path   string
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: parse %s (%s): %v", e.Path, e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
