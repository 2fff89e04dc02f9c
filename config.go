package studio

import "time"

// Config holds the tunables of the job engine.
type Config struct {
	// PollInterval is the fixed delay between two renderer status calls.
	PollInterval time.Duration

	// MaxPollAttempts bounds the number of status calls per job. The
	// wall-clock poll budget is PollInterval * MaxPollAttempts.
	MaxPollAttempts int

	// StaleThreshold is how long a job may sit in processing, measured from
	// its last transition, before recovery force-fails it instead of
	// resuming the poll loop.
	StaleThreshold time.Duration

	// RecoveryConcurrency bounds how many stale jobs recovery finalizes in
	// parallel.
	RecoveryConcurrency int

	// ErrorLogRetention is the number of newest error-log entries kept.
	ErrorLogRetention int
}

// DefaultConfig returns a Config with sensible defaults: a 20s poll
// interval over 360 attempts (two hours) and a 30 minute staleness window.
func DefaultConfig() Config {
	return Config{
		PollInterval:        20 * time.Second,
		MaxPollAttempts:     360,
		StaleThreshold:      30 * time.Minute,
		RecoveryConcurrency: 4,
		ErrorLogRetention:   100,
	}
}

// PollBudget returns the worst-case wall-clock time a job spends polling.
func (c Config) PollBudget() time.Duration {
	return c.PollInterval * time.Duration(c.MaxPollAttempts)
}
