package metrics

import "errors"

var (
	ErrCollectorAlreadyStarted = errors.New("metrics: collector already started")
	ErrCollectorNotStarted     = errors.New("metrics: collector not started")
	ErrSampleFailed            = errors.New("metrics: host sample failed")
	ErrPublishFailed           = errors.New("metrics: publish snapshot failed")
)
