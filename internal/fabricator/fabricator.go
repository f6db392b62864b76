// Package fabricator reconciles a fleet of function endpoints against a
// deployment plan: creating, updating, and deleting function resources and
// their triggers, with bounded parallelism and per-changeset failure
// containment.
package fabricator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/fnforge/fnforge/internal/errors"
	"github.com/fnforge/fnforge/internal/executor"
	"github.com/fnforge/fnforge/internal/gcp"
	"github.com/fnforge/fnforge/internal/plan"
	"github.com/fnforge/fnforge/internal/poller"
	"github.com/fnforge/fnforge/internal/scraper"
	"github.com/fnforge/fnforge/internal/triggers"
)

// Config wires a Fabricator.
type Config struct {
	// QueueExecutor bounds fast control-plane calls: IAM, queues,
	// schedules, topics.
	QueueExecutor executor.Executor
	// FunctionExecutor bounds slow function mutations and their polling.
	FunctionExecutor executor.Executor
	Clients          *gcp.Clients
	// LegacyLocation is the appspot location gen1 scheduler jobs live in.
	LegacyLocation string
	// V1SourceURL is the uploaded source for every gen1 build this
	// invocation.
	V1SourceURL string
	// V2Sources maps region to the uploaded source archive for gen2 builds.
	V2Sources map[string]gcp.StorageSource
	Logger    *slog.Logger
}

// Fabricator applies deployment plans. Instances are safe for sequential
// reuse across plans; the blocking-trigger queue stays alive until Close.
type Fabricator struct {
	queueExec executor.Executor
	fnExec    executor.Executor
	clients   *gcp.Clients

	v1Poller *poller.Poller
	v2Poller *poller.Poller

	registry     *triggers.Registry
	triggerQueue *serialQueue

	legacyLocation string
	v1SourceURL    string
	v2Sources      map[string]gcp.StorageSource

	logger *slog.Logger
}

// New creates a Fabricator and starts its blocking-trigger queue worker.
func New(cfg Config) (*Fabricator, error) {
	if cfg.Clients == nil {
		return nil, fmt.Errorf("fabricator requires clients")
	}
	if cfg.QueueExecutor == nil || cfg.FunctionExecutor == nil {
		return nil, fmt.Errorf("fabricator requires both executors")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f := &Fabricator{
		queueExec:      cfg.QueueExecutor,
		fnExec:         cfg.FunctionExecutor,
		clients:        cfg.Clients,
		legacyLocation: cfg.LegacyLocation,
		v1SourceURL:    cfg.V1SourceURL,
		v2Sources:      cfg.V2Sources,
		logger:         logger,
	}

	// Operation polls ride the slow executor so they share its quota.
	f.v1Poller = poller.New(&executorGetter{exec: cfg.FunctionExecutor, getter: cfg.Clients.FunctionsV1}, logger)
	f.v2Poller = poller.New(&executorGetter{exec: cfg.FunctionExecutor, getter: cfg.Clients.FunctionsV2}, logger)

	f.triggerQueue = newSerialQueue()
	f.registry = triggers.NewRegistry(cfg.Clients, cfg.QueueExecutor, f.triggerQueue, cfg.LegacyLocation, logger)
	return f, nil
}

// Close stops the blocking-trigger queue worker. Only call once no plan
// application is in flight.
func (f *Fabricator) Close() {
	f.triggerQueue.close()
}

// CheckPlan validates the caller contract before any mutation: plan
// well-formedness plus the presence of a source locator for every platform
// the plan touches. Violations are PreconditionErrors.
func (f *Fabricator) CheckPlan(p plan.DeploymentPlan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for _, cs := range p {
		for _, ep := range cs.Creates {
			if err := f.checkSource(ep); err != nil {
				return err
			}
		}
		for _, up := range cs.Updates {
			if err := f.checkSource(up.Endpoint); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Fabricator) checkSource(ep *plan.Endpoint) error {
	switch ep.Platform {
	case plan.PlatformGCFv1:
		if f.v1SourceURL == "" {
			return apperrors.Precondition(
				fmt.Sprintf("no gen1 source url configured; required by %s", ep.Name()), nil)
		}
	case plan.PlatformGCFv2:
		if _, ok := f.v2Sources[ep.Region]; !ok {
			return apperrors.Precondition(
				fmt.Sprintf("no gen2 source configured for region %s; required by %s", ep.Region, ep.Name()), nil)
		}
	default:
		panic("unknown platform " + string(ep.Platform))
	}
	return nil
}

// ApplyPlan applies every changeset concurrently and independently, and
// always returns a Summary with one result per endpoint. It never returns an
// error: failures surface per endpoint, and anything unexpected escaping a
// changeset is logged without disturbing the others.
func (f *Fabricator) ApplyPlan(ctx context.Context, p plan.DeploymentPlan) *Summary {
	start := time.Now()

	var mu sync.Mutex
	var results []DeployResult

	var g errgroup.Group
	for key, cs := range p {
		g.Go(func() error {
			// Defense in depth: a panicking changeset must not take the
			// others down with it.
			defer func() {
				if r := recover(); r != nil {
					f.logger.Error("changeset application panicked",
						"changeset", key, "panic", fmt.Sprint(r))
				}
			}()

			batch := f.applyChangeset(ctx, key, cs)

			mu.Lock()
			results = append(results, batch...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return &Summary{TotalTime: time.Since(start), Results: results}
}

// applyChangeset runs all creates and updates concurrently, waits for every
// one to settle, and only then decides the fate of the deletes: aborted
// without a network call when any upsert failed, otherwise run concurrently.
func (f *Fabricator) applyChangeset(ctx context.Context, key string, cs *plan.Changeset) []DeployResult {
	logger := f.logger.With("changeset", key)
	logger.Debug("applying changeset",
		"creates", len(cs.Creates), "updates", len(cs.Updates), "deletes", len(cs.Deletes))

	scr := scraper.New()

	var mu sync.Mutex
	var results []DeployResult
	record := func(r DeployResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for _, ep := range cs.Creates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(f.handle(ctx, apperrors.OpCreateFunction, ep, func(ctx context.Context) error {
				return f.createEndpoint(ctx, ep, scr)
			}))
		}()
	}
	for _, up := range cs.Updates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(f.handle(ctx, apperrors.OpUpdateFunction, up.Endpoint, func(ctx context.Context) error {
				return f.updateEndpoint(ctx, up, scr)
			}))
		}()
	}
	wg.Wait()

	for _, r := range results {
		if r.Err != nil {
			logger.Warn("aborting deletes: an upsert in this changeset failed",
				"failed", r.Endpoint.Name())
			for _, ep := range cs.Deletes {
				results = append(results, DeployResult{
					Endpoint: ep,
					Err:      &apperrors.AbortedDeploymentError{Endpoint: ep.Name()},
				})
			}
			return results
		}
	}

	for _, ep := range cs.Deletes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(f.handle(ctx, apperrors.OpDeleteFunction, ep, func(ctx context.Context) error {
				return f.deleteEndpoint(ctx, ep)
			}))
		}()
	}
	wg.Wait()

	return results
}

// handle uniformly adapts one endpoint operation into a DeployResult: it
// times fn and converts failures, panics included, into the result's error.
// Failures never escape as panics or stray errors.
func (f *Fabricator) handle(
	ctx context.Context,
	op apperrors.Op,
	ep *plan.Endpoint,
	fn func(ctx context.Context) error,
) (result DeployResult) {
	start := time.Now()
	result.Endpoint = ep

	defer func() {
		result.Duration = time.Since(start)
		if r := recover(); r != nil {
			result.Err = apperrors.Deployment(ep.Name(), op, fmt.Errorf("panic: %v", r))
		}
		if result.Err != nil {
			f.logger.Error("endpoint operation failed",
				"endpoint", ep.Name(), "op", string(op), "error", result.Err.Error())
		} else {
			f.logger.Info("endpoint operation finished",
				"endpoint", ep.Name(), "op", string(op), "duration", result.Duration)
		}
	}()

	if err := fn(ctx); err != nil {
		var depErr *apperrors.DeploymentError
		if !errors.As(err, &depErr) {
			err = apperrors.Deployment(ep.Name(), op, err)
		}
		result.Err = err
	}
	return result
}

// executorGetter routes operation fetches through an executor so polling
// shares the slow quota domain and its transient-retry policy.
type executorGetter struct {
	exec   executor.Executor
	getter poller.Getter
}

func (g *executorGetter) GetOperation(ctx context.Context, name string) (*poller.Operation, error) {
	var op *poller.Operation
	err := g.exec.Execute(ctx, func(ctx context.Context) error {
		var err error
		op, err = g.getter.GetOperation(ctx, name)
		return err
	})
	return op, err
}
