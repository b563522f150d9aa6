package core

// Metrics records domain events. Implementations must be safe for concurrent use.
type Metrics interface {
	AttemptGraded(unitKind string, passed bool)
	UnlockDecided(reason string)
	NotificationSent(template string, ok bool)
}

type NopMetrics struct{}

func (NopMetrics) AttemptGraded(string, bool)    {}
func (NopMetrics) UnlockDecided(string)          {}
func (NopMetrics) NotificationSent(string, bool) {}
