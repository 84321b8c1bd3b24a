package client

// Decision is a retry policy verdict for one failed attempt.
type Decision int

const (
	GiveUp Decision = iota
	Retry
)

// Policy decides whether attempt number attempt (1-based), which failed
// with err, should be retried. Policies are pure functions so the retry
// loop can be tested without a transport.
type Policy func(attempt int, err error) Decision

// FixedPolicy retries every failure until maxRetries retries have been
// spent, so a request makes at most maxRetries+1 attempts. Validation never
// reaches the policy; the chat layer rejects bad input before sending.
func FixedPolicy(maxRetries int) Policy {
	return func(attempt int, _ error) Decision {
		if attempt <= maxRetries {
			return Retry
		}
		return GiveUp
	}
}
