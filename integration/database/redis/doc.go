// Package redis implements the fleet backplane on Redis using go-redis.
//
// Connect builds two clients from a single connection URL: one for ordinary
// commands (GET, SET with TTL, DEL, SCAN, PUBLISH) and one dedicated to
// SUBSCRIBE, because a connection in subscribed state cannot issue other
// commands. Connectivity is verified with bounded ping retries before Connect
// returns; the wait between attempts follows backplane.RetryDelay.
//
// # Configuration
//
//	type Config struct {
//		ConnectionURL        string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
//		RetryAttempts        int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
//		MaxReconnectAttempts int           `env:"REDIS_MAX_RECONNECT_ATTEMPTS" envDefault:"10"`
//		ConnectTimeout       time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
//		ScanBatchSize        int           `env:"REDIS_SCAN_BATCH_SIZE" envDefault:"1000"`
//	}
//
// Both redis:// and rediss:// (TLS) URLs are accepted.
//
// # Usage
//
//	bp, err := redis.Connect(ctx, cfg, redis.WithLogger(log))
//	if err != nil {
//		// errors.Is(err, backplane.ErrConnectivity) when Redis is unreachable
//		return err
//	}
//	defer bp.Close()
//
//	healthy := redis.Healthcheck(bp.Client())
//
// # Subscriptions
//
// A subscription keeps receiving after transient errors: go-redis reconnects
// and resubscribes on the next receive, and the loop waits RetryDelay(n)
// between attempts. After MaxReconnectAttempts consecutive failures the
// message channel is closed and Err reports ErrSubscriptionLost joined with
// backplane.ErrConnectivity.
//
// # Errors
//
//   - ErrEmptyConnectionURL: no connection URL configured
//   - ErrFailedToParseRedisConnString: malformed URL
//   - ErrRedisNotReady: ping retries exhausted (joined with backplane.ErrConnectivity)
//   - ErrHealthcheckFailed: Healthcheck ping failed
//   - ErrSubscriptionLost: subscription gave up reconnecting
package redis
