package config

import (
	"errors"
	"fmt"
)

// MissingError reports a required setting that has no value.
type MissingError struct {
	Key string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("setting %s is not configured", e.Key)
}

// IsMissing returns true if err is or wraps a MissingError.
func IsMissing(err error) bool {
	var me *MissingError
	return errors.As(err, &me)
}
