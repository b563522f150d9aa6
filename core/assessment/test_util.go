package assessment

import "github.com/cadence/academy/core"

// NewServiceMock returns a Service running its side effects synchronously.
func NewServiceMock(deps Deps, conf *core.Config) *Service {
	svc := NewService(deps, conf)
	svc.dispatch = func(fn func()) { fn() }
	return svc
}
