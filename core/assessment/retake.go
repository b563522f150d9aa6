package assessment

import (
	"math"
	"time"

	"github.com/cadence/academy/core/training"
)

const ReasonRetakeCooldown = "retake_cooldown"

// CheckRetakeEligibility allows a first attempt unconditionally; later attempts wait for cooldown
// after the last one. HoursRemaining is rounded up.
func CheckRetakeEligibility(p training.Progress, now time.Time, cooldown time.Duration) Eligibility {
	if p.LastAttemptAt == nil {
		return Eligibility{CanRetake: true}
	}
	last := *p.LastAttemptAt
	since := now.Sub(last)
	if since >= cooldown {
		return Eligibility{CanRetake: true, LastAttemptAt: &last}
	}
	next := last.Add(cooldown)
	return Eligibility{
		CanRetake:      false,
		HoursRemaining: int(math.Ceil(cooldown.Hours() - since.Hours())),
		LastAttemptAt:  &last,
		NextAttemptAt:  &next,
	}
}
