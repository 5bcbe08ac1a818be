// Package startup brings service dependencies up in dependency order and
// retries the whole sequence with fibonacci backoff.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

// Dependency is one startable piece of the service.
type Dependency interface {
	GetName() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Func adapts plain start and stop funcs to a Dependency.
type Func struct {
	Name     string
	Requires []string
	StartFn  func(ctx context.Context) error
	StopFn   func(ctx context.Context) error
}

func (f *Func) GetName() string {
	return f.Name
}

func (f *Func) DependsOn() []string {
	return f.Requires
}

func (f *Func) Start(ctx context.Context) error {
	if f.StartFn == nil {
		return nil
	}
	return f.StartFn(ctx)
}

func (f *Func) Stop(ctx context.Context) error {
	if f.StopFn == nil {
		return nil
	}
	return f.StopFn(ctx)
}

type status int

const (
	statusPending status = iota
	statusStarted
	statusStopped
	statusFailed
)

// Runner starts registered dependencies after their requirements and stops
// them in reverse registration order.
type Runner struct {
	logger       ectologger.Logger
	dependencies map[string]Dependency
	order        []string
	statuses     map[string]status
	maxAttempts  int
}

func NewRunner(logger ectologger.Logger, maxAttempts int) *Runner {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Runner{
		logger:       logger,
		dependencies: make(map[string]Dependency),
		statuses:     make(map[string]status),
		maxAttempts:  maxAttempts,
	}
}

func (r *Runner) Add(dependency Dependency) {
	name := dependency.GetName()
	if _, exists := r.dependencies[name]; !exists {
		r.order = append(r.order, name)
	}
	r.dependencies[name] = dependency
}

// Start attempts the full startup sequence up to maxAttempts times, waiting
// a fibonacci number of seconds between attempts.
func (r *Runner) Start(ctx context.Context) error {
	var lastErr error

	a, b := 1, 1
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		r.logger.WithContext(ctx).WithField("attempt", attempt).Infof("Beginning startup attempt %d", attempt)

		lastErr = nil
		for _, name := range r.order {
			if err := r.start(ctx, r.dependencies[name]); err != nil {
				r.logger.WithContext(ctx).WithError(err).Errorf("Startup dependency '%s' failed on attempt %d", name, attempt)
				lastErr = err
				break
			}
		}

		if lastErr == nil {
			return nil
		}

		if attempt == r.maxAttempts {
			break
		}

		r.logger.WithContext(ctx).Infof("Retrying startup in %d seconds (attempt %d/%d)", a, attempt, r.maxAttempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(a) * time.Second):
		}
		a, b = b, a+b
	}

	return fmt.Errorf("startup failed after %d attempts: %w", r.maxAttempts, lastErr)
}

func (r *Runner) start(ctx context.Context, dependency Dependency) error {
	name := dependency.GetName()
	if r.statuses[name] == statusStarted {
		return nil
	}

	for _, required := range dependency.DependsOn() {
		requirement, ok := r.dependencies[required]
		if !ok {
			return fmt.Errorf("dependency '%s' requires unknown dependency '%s'", name, required)
		}
		if r.statuses[required] != statusStarted {
			if err := r.start(ctx, requirement); err != nil {
				return err
			}
		}
	}

	r.logger.WithContext(ctx).WithField("dependency", name).Infof("Starting dependency '%s'", name)
	if err := dependency.Start(ctx); err != nil {
		r.statuses[name] = statusFailed
		return err
	}
	r.statuses[name] = statusStarted
	return nil
}

// Stop stops started dependencies in reverse registration order. It keeps
// going on failure so later dependencies still get a shutdown call, and
// returns the first error seen.
func (r *Runner) Stop(ctx context.Context) error {
	var firstErr error

	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		if r.statuses[name] != statusStarted {
			continue
		}

		r.logger.WithContext(ctx).WithField("dependency", name).Infof("Stopping dependency '%s'", name)
		if err := r.dependencies[name].Stop(ctx); err != nil {
			r.logger.WithContext(ctx).WithError(err).Errorf("Failed to stop dependency '%s'", name)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		r.statuses[name] = statusStopped
	}

	return firstErr
}
