package policy

import (
	"errors"
	"time"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/models"
)

type Policy struct {
	MaxAttempts  int
	ParseCeiling int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
}

func FromConfig(p config.Policy) Policy {
	return Policy{
		MaxAttempts:  p.MaxAttempts,
		ParseCeiling: p.ParseCeiling,
		BackoffBase:  p.BackoffBase,
		BackoffMax:   p.BackoffMax,
	}
}

func Default() Policy {
	return Policy{
		MaxAttempts:  3,
		ParseCeiling: 2,
		BackoffBase:  30 * time.Second,
		BackoffMax:   10 * time.Minute,
	}
}

// Decision is what the orchestrator persists after a failed step.
type Decision struct {
	Kind         config.ErrorKind
	Terminal     bool
	FailureCount int
	RetryAt      time.Time
	Error        string
	Summary      string
}

// Decide classifies err for job and works out whether it has hit its ceiling.
// Ceilings count consecutive failures of the current step, not claims, since
// a healthy job is claimed once per step. Transient and parse failures draw
// on the same count, each checked against its own ceiling.
func (p Policy) Decide(job *models.Job, err error, now time.Time) Decision {
	kind, summary := Classify(err)
	failures := job.FailureCount + 1

	d := Decision{
		Kind:         kind,
		FailureCount: failures,
		Error:        err.Error(),
		Summary:      summary,
	}

	switch kind {
	case config.ErrorKindTerminal:
		d.Terminal = true
	case config.ErrorKindParse:
		d.Terminal = failures >= p.ParseCeiling
	default:
		d.Terminal = failures >= p.ceiling(job)
	}

	if d.Terminal {
		if kind != config.ErrorKindTerminal {
			d.Summary = "This job failed repeatedly and has been stopped. " + summary
		}
		return d
	}

	delay := p.Backoff(failures)
	var ra *RetryAfterError
	if errors.As(err, &ra) && ra.Delay > delay {
		delay = min(ra.Delay, p.BackoffMax)
	}
	d.RetryAt = now.Add(delay)
	return d
}

func (p Policy) ceiling(job *models.Job) int {
	if job.MaxAttempts > 0 {
		return job.MaxAttempts
	}
	return p.MaxAttempts
}

// Backoff returns BackoffBase doubled for every failure after the first,
// capped at BackoffMax.
func (p Policy) Backoff(failures int) time.Duration {
	if failures < 1 || p.BackoffBase <= 0 {
		return 0
	}
	d := p.BackoffBase
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= p.BackoffMax {
			return p.BackoffMax
		}
	}
	return min(d, p.BackoffMax)
}
