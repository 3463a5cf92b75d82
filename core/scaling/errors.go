package scaling

import "errors"

var (
	ErrInvalidConfig         = errors.New("scaling: invalid configuration")
	ErrAdvisorAlreadyStarted = errors.New("scaling: advisor already started")
	ErrAdvisorNotStarted     = errors.New("scaling: advisor not started")
	ErrCheckFailed           = errors.New("scaling: check failed")
	ErrNoRecommendation      = errors.New("scaling: no recommendation recorded")
)
