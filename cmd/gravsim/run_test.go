package main

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/storage"
)

func binaryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.GetPreset("binary")
	cfg.IntervalMs = 1
	return cfg
}

func TestSimulateStopsAtTickLimit(t *testing.T) {
	cfg := binaryConfig(t)
	bodies, err := cfg.GetBodies()
	if err != nil {
		t.Fatal(err)
	}

	res, err := simulate(context.Background(), cfg, bodies, 50, logr.Discard())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.Final.Tick != 50 {
		t.Errorf("final tick = %d, want 50", res.Final.Tick)
	}

	// Nothing is published after simulate returns.
	time.Sleep(20 * time.Millisecond)
	last, values := res.Monitor.Latest()
	if last.Tick != res.Final.Tick || last.Session != res.Final.Session {
		t.Errorf("monitor at %s/%d, result at %s/%d", last.Session, last.Tick, res.Final.Session, res.Final.Tick)
	}
	for name, v := range values {
		if res.Metrics[name] != v {
			t.Errorf("%s = %g in result, %g in monitor", name, res.Metrics[name], v)
		}
	}
	if got := len(res.Monitor.History("energy_drift")); got != 50 {
		t.Errorf("energy history has %d entries, want 50", got)
	}
}

func TestSimulateSavedRunMatchesMetrics(t *testing.T) {
	cfg := binaryConfig(t)
	bodies, err := cfg.GetBodies()
	if err != nil {
		t.Fatal(err)
	}

	res, err := simulate(context.Background(), cfg, bodies, 30, logr.Discard())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}

	st := storage.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	runID, err := st.Save(cfg.Scenario, cfg.Settings().Interval, res.Final, res.Metrics)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	last, values := res.Monitor.Latest()
	if meta.Ticks != last.Tick {
		t.Errorf("saved tick %d, monitor tick %d", meta.Ticks, last.Tick)
	}
	if meta.Time != last.Time {
		t.Errorf("saved time %g, monitor time %g", meta.Time, last.Time)
	}
	if meta.Metrics["energy_drift"] != values["energy_drift"] {
		t.Errorf("saved drift %g, monitor drift %g", meta.Metrics["energy_drift"], values["energy_drift"])
	}
}

func TestSimulateStopsOnInvalidState(t *testing.T) {
	cfg := binaryConfig(t)
	cfg.StopOnInvalid = true
	bodies, err := cfg.GetBodies()
	if err != nil {
		t.Fatal(err)
	}
	bodies[1].Pos = bodies[0].Pos

	res, err := simulate(context.Background(), cfg, bodies, 0, logr.Discard())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.Final.Tick != 1 || res.Final.Err() == nil {
		t.Errorf("expected an invalid first tick, got tick %d err %v", res.Final.Tick, res.Final.Err())
	}
}

func TestSimulateHonoursCancel(t *testing.T) {
	cfg := binaryConfig(t)
	bodies, err := cfg.GetBodies()
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res, err := simulate(ctx, cfg, bodies, 0, logr.Discard())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.Final.Tick == 0 {
		t.Error("expected at least the first tick")
	}
	if _, ok := res.Metrics["stability"]; !ok {
		t.Error("metrics missing from an interrupted run")
	}
}
