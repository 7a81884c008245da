package fetch

import (
	"math"
	"math/rand"
	"time"
)

// calcBackoff doubles initial for every failure up to maxDelay and adds +/-20%
// jitter.
func calcBackoff(initial, maxDelay time.Duration, failures int) time.Duration {
	pow := math.Pow(2, float64(failures-1))
	backoff := time.Duration(float64(initial) * pow)
	if backoff > maxDelay {
		backoff = maxDelay
	}

	jitterFrac := 0.2
	jitter := time.Duration(rand.Float64()*2*jitterFrac*float64(backoff)) -
		time.Duration(jitterFrac*float64(backoff))

	return backoff + jitter
}
