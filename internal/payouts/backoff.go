package payouts

import "time"

// NextBackoff returns the delay before the given attempt number is retried.
// The schedule grows by a factor of four per attempt and is capped, so a
// stuck rail never pushes retries out indefinitely.
func NextBackoff(base, cap time.Duration, attempts int) time.Duration {
	if base <= 0 {
		base = time.Minute
	}
	if cap <= 0 {
		cap = 6 * time.Hour
	}
	if attempts < 1 {
		attempts = 1
	}

	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 4
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}
