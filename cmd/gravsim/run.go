package main

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/metrics"
	"github.com/san-kum/gravsim/internal/sim"
	"golang.org/x/sync/errgroup"
)

const progressEvery = 100

// runResult is the end state of a headless run. Final and Metrics come
// from the same published tick.
type runResult struct {
	Final   dynamo.Snapshot
	Metrics map[string]float64
	Monitor *metrics.Monitor
	Dropped uint64
}

// simulate runs cfg headless until maxTicks ticks have been published, the
// state turns invalid with StopOnInvalid set, or ctx ends. maxTicks 0 means
// no limit.
func simulate(ctx context.Context, cfg *config.Config, bodies []dynamo.Body, maxTicks uint64, log logr.Logger) (*runResult, error) {
	feed := sim.NewChannelPublisher(64)
	mon := metrics.NewMonitor()

	ended := make(chan struct{})
	var endOnce sync.Once
	watch := sim.PublisherFunc(func(s dynamo.Snapshot) {
		if (maxTicks > 0 && s.Tick >= maxTicks) || (cfg.StopOnInvalid && s.Err() != nil) {
			endOnce.Do(func() { close(ended) })
		}
	})

	sched := sim.New(bodies, sim.Fanout{feed, mon, watch},
		sim.WithLogger(log.WithName("scheduler")),
		sim.WithEngineOptions(cfg.EngineOptions()...))
	defer sched.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ended:
				return nil
			case s := <-feed.C():
				if s.Tick%progressEvery == 0 {
					log.V(1).Info("progress", "tick", s.Tick, "time", s.Time)
				}
			}
		}
	})

	settings := cfg.Settings()
	settings.MaxTicks = maxTicks
	if err := sched.Start(ctx, settings); err != nil {
		return nil, err
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := sched.Stop(context.Background()); err != nil {
		return nil, err
	}

	final, values := mon.Latest()
	log.V(1).Info("run finished", "tick", final.Tick, "dropped", feed.Dropped())
	return &runResult{
		Final:   final,
		Metrics: values,
		Monitor: mon,
		Dropped: feed.Dropped(),
	}, nil
}
