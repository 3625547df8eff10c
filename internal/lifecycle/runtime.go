package lifecycle

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Component is a long-running part of the bot with an explicit lifecycle.
// Start and Stop are expected to be idempotent.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runtime starts registered components in order and stops them in reverse.
type Runtime struct {
	mutex      sync.Mutex
	components []Component
	started    []Component
	logger     *log.Entry
}

func NewRuntime(components ...Component) *Runtime {
	return &Runtime{
		components: components,
		logger:     log.WithField("object", "Runtime"),
	}
}

func (r *Runtime) Register(component Component) {
	if component == nil {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.components = append(r.components, component)
}

// Start brings every component up. On failure the already started ones are
// stopped in reverse order before the error is returned.
func (r *Runtime) Start(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, component := range r.components {
		if component == nil {
			continue
		}
		if err := component.Start(ctx); err != nil {
			r.logger.WithError(err).Error("component start failed, rolling back")
			_ = stopInReverse(ctx, r.started, r.logger)
			r.started = nil
			return errors.Wrap(err, "cant start component")
		}
		r.started = append(r.started, component)
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	err := stopInReverse(ctx, r.started, r.logger)
	r.started = nil
	return err
}

func stopInReverse(ctx context.Context, components []Component, logger *log.Entry) error {
	var firstErr error
	for i := len(components) - 1; i >= 0; i-- {
		if components[i] == nil {
			continue
		}
		if err := components[i].Stop(ctx); err != nil {
			logger.WithError(err).Error("component stop failed")
			if firstErr == nil {
				firstErr = errors.Wrap(err, "cant stop component")
			}
		}
	}
	return firstErr
}
