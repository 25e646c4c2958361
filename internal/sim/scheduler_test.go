package sim

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r2"
)

type recorder struct {
	mu    sync.Mutex
	snaps []dynamo.Snapshot
}

func (r *recorder) Publish(s dynamo.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *recorder) All() []dynamo.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dynamo.Snapshot(nil), r.snaps...)
}

func (r *recorder) Last() dynamo.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

// Session returns the session of the latest snapshot, or "" before the first.
func (r *recorder) Session() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return ""
	}
	return r.snaps[len(r.snaps)-1].Session
}

// awaitSession waits until the latest snapshot belongs to a session other
// than prev. A restart issued while a publish is in progress is applied
// once that publish returns.
func awaitSession(rec *recorder, prev string) dynamo.Snapshot {
	GinkgoHelper()
	Eventually(rec.Session).ShouldNot(Equal(prev))
	return rec.Last()
}

func binary() []dynamo.Body {
	return []dynamo.Body{
		{Name: "a", Mass: 1e10, Pos: r2.Vec{Y: -3}},
		{Name: "b", Mass: 1e10, Pos: r2.Vec{Y: 3}},
	}
}

var _ = Describe("Scheduler", func() {
	var (
		ctx   context.Context
		rec   *recorder
		sched *Scheduler
		fast  Settings
	)

	BeforeEach(func() {
		ctx = context.Background()
		rec = &recorder{}
		sched = New(binary(), rec)
		fast = Settings{Interval: 2 * time.Millisecond, StepSeconds: 1.0 / 60}
	})

	AfterEach(func() {
		sched.Close()
	})

	Describe("Stop", func() {
		It("is a no-op before any Start", func() {
			Expect(sched.Stop(ctx)).To(Succeed())
			Expect(sched.State()).To(Equal(Stopped))
			Consistently(rec.Len, 30*time.Millisecond).Should(BeZero())
		})

		It("halts publishing once it returns", func() {
			Expect(sched.Start(ctx, fast)).To(Succeed())
			Eventually(rec.Len).Should(BeNumerically(">=", 3))

			Expect(sched.Stop(ctx)).To(Succeed())
			Expect(sched.Running()).To(BeFalse())

			// A publish already in flight when Stop lands may still finish.
			n := rec.Len()
			Consistently(rec.Len, 50*time.Millisecond).Should(BeNumerically("<=", n+1))
		})

		It("can be called repeatedly", func() {
			Expect(sched.Start(ctx, fast)).To(Succeed())
			Expect(sched.Stop(ctx)).To(Succeed())
			Expect(sched.Stop(ctx)).To(Succeed())
			Expect(sched.State()).To(Equal(Stopped))
		})
	})

	Describe("Start", func() {
		It("publishes the first tick before returning", func() {
			slow := Settings{Interval: time.Hour, StepSeconds: 1.0 / 60}
			Expect(sched.Start(ctx, slow)).To(Succeed())

			Expect(rec.Len()).To(Equal(1))
			first := rec.Last()
			Expect(first.Tick).To(Equal(uint64(1)))
			Expect(first.Time).To(Equal(1.0 / 60))
			Expect(first.Bodies).To(HaveLen(2))
			Expect(sched.State()).To(Equal(Running))
		})

		It("keeps ticking on the interval with increasing time", func() {
			Expect(sched.Start(ctx, fast)).To(Succeed())
			Eventually(rec.Len).Should(BeNumerically(">=", 10))
			Expect(sched.Stop(ctx)).To(Succeed())

			snaps := rec.All()
			for i, s := range snaps {
				Expect(s.Tick).To(Equal(uint64(i + 1)))
				Expect(s.Time).To(BeNumerically("~", float64(i+1)*fast.StepSeconds, 1e-12))
				Expect(s.Session).To(Equal(snaps[0].Session))
			}
		})

		It("publishes bodies in a stable order", func() {
			Expect(sched.Start(ctx, fast)).To(Succeed())
			Eventually(rec.Len).Should(BeNumerically(">=", 5))
			Expect(sched.Stop(ctx)).To(Succeed())

			for _, s := range rec.All() {
				Expect(s.Bodies[0].Name).To(Equal("a"))
				Expect(s.Bodies[1].Name).To(Equal("b"))
			}
		})

		It("matches a directly driven engine", func() {
			Expect(sched.Start(ctx, fast)).To(Succeed())
			Eventually(rec.Len).Should(BeNumerically(">=", 5))
			Expect(sched.Stop(ctx)).To(Succeed())

			engine, err := physics.NewEngine(binary(), fast.StepSeconds)
			Expect(err).NotTo(HaveOccurred())
			for _, s := range rec.All() {
				engine.Advance()
				Expect(s.Bodies).To(Equal(engine.Bodies()))
			}
		})

		It("hands out snapshots that do not alias engine state", func() {
			Expect(sched.Start(ctx, fast)).To(Succeed())
			first := rec.Last()
			kept := first.Clone()

			Eventually(rec.Len).Should(BeNumerically(">=", 5))
			Expect(sched.Stop(ctx)).To(Succeed())
			Expect(first.Bodies).To(Equal(kept.Bodies))
		})

		It("restarts from the initial configuration when already running", func() {
			Expect(sched.Start(ctx, fast)).To(Succeed())
			Eventually(rec.Len).Should(BeNumerically(">=", 5))
			firstSession := rec.Last().Session

			slow := Settings{Interval: time.Hour, StepSeconds: fast.StepSeconds}
			Expect(sched.Start(ctx, slow)).To(Succeed())
			restarted := awaitSession(rec, firstSession)

			Expect(restarted.Session).NotTo(Equal(firstSession))
			Expect(restarted.Tick).To(Equal(uint64(1)))
			Expect(restarted.Time).To(Equal(fast.StepSeconds))
			Expect(restarted.Bodies).To(Equal(rec.All()[0].Bodies))
			Expect(sched.State()).To(Equal(Running))
		})

		It("behaves the same as Stop followed by Start", func() {
			slow := Settings{Interval: time.Hour, StepSeconds: fast.StepSeconds}

			Expect(sched.Start(ctx, fast)).To(Succeed())
			Eventually(rec.Len).Should(BeNumerically(">=", 3))
			Expect(sched.Start(ctx, slow)).To(Succeed())
			direct := awaitSession(rec, rec.All()[0].Session)

			Expect(sched.Stop(ctx)).To(Succeed())
			Expect(sched.Start(ctx, slow)).To(Succeed())
			viaStop := awaitSession(rec, direct.Session)

			Expect(viaStop.Tick).To(Equal(direct.Tick))
			Expect(viaStop.Time).To(Equal(direct.Time))
			Expect(viaStop.Bodies).To(Equal(direct.Bodies))
		})

		It("uses the new timestep after a restart", func() {
			slow := Settings{Interval: time.Hour, StepSeconds: 2}
			Expect(sched.Start(ctx, fast)).To(Succeed())
			first := rec.Last().Session
			Expect(sched.Start(ctx, slow)).To(Succeed())

			last := awaitSession(rec, first)
			Expect(last.Step).To(Equal(2.0))
			Expect(last.Time).To(Equal(2.0))
		})

		DescribeTable("rejects invalid settings without ticking",
			func(settings Settings, want error) {
				Expect(sched.Start(ctx, settings)).To(MatchError(want))
				Expect(sched.State()).To(Equal(Stopped))
				Expect(rec.Len()).To(BeZero())
			},
			Entry("zero interval", Settings{Interval: 0, StepSeconds: 1}, dynamo.ErrNonPositiveInterval),
			Entry("negative interval", Settings{Interval: -time.Second, StepSeconds: 1}, dynamo.ErrNonPositiveInterval),
			Entry("zero step", Settings{Interval: time.Millisecond, StepSeconds: 0}, dynamo.ErrNonPositiveStep),
			Entry("negative step", Settings{Interval: time.Millisecond, StepSeconds: -1}, dynamo.ErrNonPositiveStep),
		)

		It("leaves a running session alone when a restart is rejected", func() {
			Expect(sched.Start(ctx, fast)).To(Succeed())
			session := rec.Last().Session

			Expect(sched.Start(ctx, Settings{Interval: time.Millisecond})).To(MatchError(dynamo.ErrNonPositiveStep))
			Expect(sched.Running()).To(BeTrue())

			n := rec.Len()
			Eventually(rec.Len).Should(BeNumerically(">", n))
			Expect(rec.Last().Session).To(Equal(session))
		})
	})

	Describe("configuration errors", func() {
		It("rejects a body with non-positive mass before any tick", func() {
			bodies := binary()
			bodies[1].Mass = 0
			bad := New(bodies, rec)
			defer bad.Close()

			Expect(bad.Start(ctx, fast)).To(MatchError(dynamo.ErrNonPositiveMass))
			Expect(bad.State()).To(Equal(Stopped))
			Consistently(rec.Len, 20*time.Millisecond).Should(BeZero())
		})
	})

	Describe("numerical degeneracy", func() {
		var coincident []dynamo.Body

		BeforeEach(func() {
			coincident = []dynamo.Body{
				{Mass: 1e10, Pos: r2.Vec{X: 1, Y: 1}},
				{Mass: 1e10, Pos: r2.Vec{X: 1, Y: 1}},
			}
		})

		It("publishes detectable invalid snapshots and keeps running by default", func() {
			s := New(coincident, rec)
			defer s.Close()

			Expect(s.Start(ctx, fast)).To(Succeed())
			Expect(rec.Last().Err()).To(MatchError(dynamo.ErrInvalidState))
			Eventually(rec.Len).Should(BeNumerically(">=", 3))
			Expect(s.Running()).To(BeTrue())
		})

		It("stops the session when StopOnInvalid is set", func() {
			s := New(coincident, rec)
			defer s.Close()

			strict := fast
			strict.StopOnInvalid = true
			Expect(s.Start(ctx, strict)).To(Succeed())

			Expect(s.State()).To(Equal(Stopped))
			Consistently(rec.Len, 20*time.Millisecond).Should(Equal(1))
		})

		It("stays finite with a minimum separation", func() {
			s := New(coincident, rec, WithEngineOptions(physics.WithMinSeparation(1)))
			defer s.Close()

			Expect(s.Start(ctx, fast)).To(Succeed())
			Eventually(rec.Len).Should(BeNumerically(">=", 3))
			Expect(s.Stop(ctx)).To(Succeed())
			for _, snap := range rec.All() {
				Expect(snap.Err()).NotTo(HaveOccurred())
			}
		})
	})

	Describe("publisher failures", func() {
		It("contains a panicking publisher", func() {
			calls := 0
			var mu sync.Mutex
			s := New(binary(), PublisherFunc(func(dynamo.Snapshot) {
				mu.Lock()
				calls++
				mu.Unlock()
				panic("consumer bug")
			}))
			defer s.Close()

			Expect(s.Start(ctx, fast)).To(Succeed())
			Eventually(func() int {
				mu.Lock()
				defer mu.Unlock()
				return calls
			}).Should(BeNumerically(">=", 3))
			Expect(s.Running()).To(BeTrue())
		})
	})

	Describe("tick limit", func() {
		It("ends the session after MaxTicks ticks", func() {
			limited := fast
			limited.MaxTicks = 5
			Expect(sched.Start(ctx, limited)).To(Succeed())

			Eventually(sched.Running).Should(BeFalse())
			Expect(rec.Len()).To(Equal(5))
			Expect(rec.Last().Tick).To(Equal(uint64(5)))
			Consistently(rec.Len, 30*time.Millisecond).Should(Equal(5))
		})

		It("can end the session on the first tick", func() {
			limited := fast
			limited.MaxTicks = 1
			Expect(sched.Start(ctx, limited)).To(Succeed())

			Expect(sched.State()).To(Equal(Stopped))
			Consistently(rec.Len, 20*time.Millisecond).Should(Equal(1))
		})
	})

	Describe("calls from inside Publish", func() {
		var (
			mu    sync.Mutex
			ticks []uint64
			errs  []error
		)

		BeforeEach(func() {
			mu.Lock()
			ticks, errs = nil, nil
			mu.Unlock()
		})

		seen := func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(ticks)
		}

		// reentrant returns a scheduler whose publisher runs action at tick 3.
		reentrant := func(action func(*Scheduler) error) *Scheduler {
			var s *Scheduler
			s = New(binary(), PublisherFunc(func(snap dynamo.Snapshot) {
				mu.Lock()
				ticks = append(ticks, snap.Tick)
				mu.Unlock()
				if snap.Tick != 3 {
					return
				}
				err := action(s)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}))
			return s
		}

		It("applies Stop without deadlocking", func() {
			s := reentrant(func(s *Scheduler) error {
				timeout, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
				defer cancel()
				return s.Stop(timeout)
			})
			defer s.Close()

			Expect(s.Start(ctx, fast)).To(Succeed())
			Eventually(s.Running).Should(BeFalse())
			Consistently(seen, 30*time.Millisecond).Should(Equal(3))

			mu.Lock()
			defer mu.Unlock()
			Expect(errs).To(Equal([]error{nil}))
		})

		It("applies a restart once Publish returns", func() {
			slow := Settings{Interval: time.Hour, StepSeconds: fast.StepSeconds}
			s := reentrant(func(s *Scheduler) error {
				return s.Start(context.Background(), slow)
			})
			defer s.Close()

			Expect(s.Start(ctx, fast)).To(Succeed())
			Eventually(seen).Should(Equal(4))
			Consistently(seen, 30*time.Millisecond).Should(Equal(4))
			Expect(s.State()).To(Equal(Running))

			mu.Lock()
			defer mu.Unlock()
			Expect(ticks).To(Equal([]uint64{1, 2, 3, 1}))
			Expect(errs).To(Equal([]error{nil}))
		})

		It("still rejects invalid settings", func() {
			s := reentrant(func(s *Scheduler) error {
				return s.Start(context.Background(), Settings{Interval: time.Millisecond})
			})
			defer s.Close()

			Expect(s.Start(ctx, fast)).To(Succeed())
			Eventually(seen).Should(BeNumerically(">", 3))
			Expect(s.Running()).To(BeTrue())

			mu.Lock()
			defer mu.Unlock()
			Expect(errs).To(HaveLen(1))
			Expect(errs[0]).To(MatchError(dynamo.ErrNonPositiveStep))
		})

		It("closes without deadlocking", func() {
			s := reentrant(func(s *Scheduler) error {
				s.Close()
				return nil
			})

			Expect(s.Start(ctx, fast)).To(Succeed())
			Eventually(s.Running).Should(BeFalse())
			Consistently(seen, 30*time.Millisecond).Should(Equal(3))

			done := make(chan struct{})
			go func() {
				s.Close()
				close(done)
			}()
			Eventually(done).Should(BeClosed())
			Expect(s.Start(ctx, fast)).To(MatchError(dynamo.ErrClosed))
		})
	})

	Describe("Close", func() {
		It("stops the session and rejects later starts", func() {
			Expect(sched.Start(ctx, fast)).To(Succeed())
			sched.Close()

			Expect(sched.Running()).To(BeFalse())
			Expect(sched.Start(ctx, fast)).To(MatchError(dynamo.ErrClosed))
			Expect(sched.Stop(ctx)).To(Succeed())
		})

		It("honours a cancelled context", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			sched.Close()
			Expect(sched.Start(cancelled, fast)).To(HaveOccurred())
		})
	})
})
