package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type transition struct {
	from, to State
}

// newTestBreaker returns a breaker on a fake clock that records its
// transitions.
func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock, *[]transition) {
	clock := newFakeClock()
	var seen []transition
	cfg.Name = "test"
	cfg.Now = clock.Now
	cfg.OnStateChange = func(_ string, from, to State) {
		seen = append(seen, transition{from, to})
	}
	return NewCircuitBreaker(cfg), clock, &seen
}

func fail() error    { return errTest }
func succeed() error { return nil }

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	if cb.cfg.MaxFailures != DefaultMaxFailures || cb.cfg.ResetTimeout != DefaultResetTimeout || cb.cfg.HalfOpenMax != DefaultHalfOpenMax {
		t.Errorf("defaults = %+v", cb.cfg)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		cfg       CircuitBreakerConfig
		run       func(cb *CircuitBreaker, clock *fakeClock)
		wantState State
		wantSeen  []transition
	}{
		{
			name:      "failures below threshold stay closed",
			cfg:       CircuitBreakerConfig{MaxFailures: 3},
			run:       func(cb *CircuitBreaker, _ *fakeClock) { _ = cb.Execute(fail); _ = cb.Execute(fail) },
			wantState: StateClosed,
		},
		{
			name: "success resets the failure count",
			cfg:  CircuitBreakerConfig{MaxFailures: 3},
			run: func(cb *CircuitBreaker, _ *fakeClock) {
				_ = cb.Execute(fail)
				_ = cb.Execute(fail)
				_ = cb.Execute(succeed)
				_ = cb.Execute(fail)
				_ = cb.Execute(fail)
			},
			wantState: StateClosed,
		},
		{
			name: "consecutive failures open",
			cfg:  CircuitBreakerConfig{MaxFailures: 3},
			run: func(cb *CircuitBreaker, _ *fakeClock) {
				for range 3 {
					_ = cb.Execute(fail)
				}
			},
			wantState: StateOpen,
			wantSeen:  []transition{{StateClosed, StateOpen}},
		},
		{
			name: "cool-down reports half-open",
			cfg:  CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute},
			run: func(cb *CircuitBreaker, clock *fakeClock) {
				_ = cb.Execute(fail)
				clock.Advance(time.Minute)
			},
			wantState: StateHalfOpen,
			wantSeen:  []transition{{StateClosed, StateOpen}},
		},
		{
			name: "successful probes close",
			cfg:  CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute, HalfOpenMax: 2},
			run: func(cb *CircuitBreaker, clock *fakeClock) {
				_ = cb.Execute(fail)
				clock.Advance(time.Minute)
				_ = cb.Execute(succeed)
				_ = cb.Execute(succeed)
			},
			wantState: StateClosed,
			wantSeen: []transition{
				{StateClosed, StateOpen},
				{StateOpen, StateHalfOpen},
				{StateHalfOpen, StateClosed},
			},
		},
		{
			name: "failed probe reopens",
			cfg:  CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute, HalfOpenMax: 3},
			run: func(cb *CircuitBreaker, clock *fakeClock) {
				_ = cb.Execute(fail)
				clock.Advance(time.Minute)
				_ = cb.Execute(succeed)
				_ = cb.Execute(fail)
			},
			wantState: StateOpen,
			wantSeen: []transition{
				{StateClosed, StateOpen},
				{StateOpen, StateHalfOpen},
				{StateHalfOpen, StateOpen},
			},
		},
		{
			name: "reset closes",
			cfg:  CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
			run: func(cb *CircuitBreaker, _ *fakeClock) {
				_ = cb.Execute(fail)
				cb.Reset()
			},
			wantState: StateClosed,
			wantSeen:  []transition{{StateClosed, StateOpen}, {StateOpen, StateClosed}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cb, clock, seen := newTestBreaker(tt.cfg)
			tt.run(cb, clock)
			if got := cb.State(); got != tt.wantState {
				t.Errorf("state = %v, want %v", got, tt.wantState)
			}
			if len(*seen) != len(tt.wantSeen) {
				t.Fatalf("transitions = %v, want %v", *seen, tt.wantSeen)
			}
			for i := range tt.wantSeen {
				if (*seen)[i] != tt.wantSeen[i] {
					t.Errorf("transition %d = %v, want %v", i, (*seen)[i], tt.wantSeen[i])
				}
			}
		})
	}
}

func TestCircuitBreaker_OpenRejectsWithoutCalling(t *testing.T) {
	t.Parallel()
	cb, clock, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute})
	_ = cb.Execute(fail)

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("Execute while open = %v (called=%v), want ErrCircuitOpen", err, called)
	}

	clock.Advance(59 * time.Second)
	if err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute before cool-down = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_ProbeBudget(t *testing.T) {
	t.Parallel()
	cb, clock, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute, HalfOpenMax: 1})
	_ = cb.Execute(fail)
	clock.Advance(time.Minute)

	// A probe still in flight uses the whole budget.
	probeStarted := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(probeStarted)
			<-release
			return nil
		})
	}()
	<-probeStarted
	if err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe = %v, want ErrCircuitOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed after the probe succeeded", cb.State())
	}
}

func TestCircuitBreaker_IgnoredErrorsDoNotCount(t *testing.T) {
	t.Parallel()
	errIgnored := errors.New("ignored")
	cb, clock, _ := newTestBreaker(CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Minute,
		HalfOpenMax:  1,
		Ignore:       func(err error) bool { return errors.Is(err, errIgnored) },
	})

	for range 5 {
		if err := cb.Execute(func() error { return errIgnored }); !errors.Is(err, errIgnored) {
			t.Fatalf("err = %v, want errIgnored", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}

	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	clock.Advance(time.Minute)

	// An ignored probe gives its slot back.
	_ = cb.Execute(func() error { return errIgnored })
	if err := cb.Execute(succeed); err != nil {
		t.Fatalf("probe after ignored probe = %v, want nil", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
