package redis

import "errors"

// Domain-specific Redis errors. They are always joined with backplane.ErrConnectivity
// when the failure means the store could not be reached.
var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready within the given time period")
	ErrEmptyConnectionURL           = errors.New("empty redis connection URL")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
	ErrSubscriptionLost             = errors.New("redis subscription lost after reconnect attempts")
)
