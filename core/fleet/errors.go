package fleet

import "errors"

// ErrInvalidConfig is returned by Config.Validate and New for unusable settings.
var ErrInvalidConfig = errors.New("fleet: invalid configuration")
