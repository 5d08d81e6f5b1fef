package venue

import (
	"context"
	"log"
	"strings"
	"time"
)

const (
	retryInitialBackoff = 2 * time.Second
	retryMaxBackoff     = 10 * time.Second
	retryMaxAttempts    = 3
)

// semanticSuccessMarkers are venue error substrings that mean the desired
// end state was already reached — not a real failure. Translated to
// success rather than retried.
var semanticSuccessMarkers = []string{
	"no need to change",
	"already set",
	"unknown order",
	"order does not exist",
	"-2011", // CANCEL_REJECTED: unknown order sent (already filled/cancelled)
	"-4046", // NO_NEED_TO_CHANGE_MARGIN_TYPE
	"-4059", // NO_NEED_TO_CHANGE_POSITION_SIDE
}

// transientMarkers are venue error substrings worth retrying: network
// blips, rate limiting, and transient 5xx-class responses.
var transientMarkers = []string{
	"-1003", // rate limit
	"-1021", // timestamp outside recvWindow
	"timeout",
	"connection reset",
	"connection refused",
	"eof",
	"temporary failure",
	"i/o timeout",
	"502",
	"503",
	"504",
}

func isSemanticSuccess(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range semanticSuccessMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// withRetry wraps a single venue call with bounded exponential backoff.
// Semantic "already there" errors are swallowed as success; transient
// errors are retried up to retryMaxAttempts; anything else fails fast.
// The envelope lives here, inside the adapter, never at the strategy
// level.
func withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := retryInitialBackoff
	var lastErr error

	for attempt := 1; attempt <= retryMaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if isSemanticSuccess(err) {
			log.Printf("✅ VENUE: %s already in desired state (%v)", op, err)
			return nil
		}

		lastErr = err

		if !isTransient(err) {
			log.Printf("❌ VENUE: %s failed non-transiently: %v", op, err)
			return err
		}

		if attempt == retryMaxAttempts {
			break
		}

		log.Printf("⚠️ VENUE: %s transient error (attempt %d/%d): %v", op, attempt, retryMaxAttempts, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > retryMaxBackoff {
			backoff = retryMaxBackoff
		}
	}

	log.Printf("❌ VENUE: %s exhausted retry budget: %v", op, lastErr)
	return lastErr
}
