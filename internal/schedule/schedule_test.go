package schedule

import (
	"context"
	"testing"
	"time"

	"jokebot/pkg/logx"
)

func TestNextFireTopOfHour(t *testing.T) {
	t.Parallel()
	h := NewHourly(func(context.Context) {}, logx.Nop())

	tests := []struct {
		name  string
		now   time.Time
		want  time.Time
		delay time.Duration
	}{
		{
			name:  "mid hour",
			now:   time.Date(2025, 3, 14, 14, 37, 0, 0, time.UTC),
			want:  time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC),
			delay: 1380 * time.Second,
		},
		{
			name:  "exact boundary fires next hour",
			now:   time.Date(2025, 3, 14, 14, 0, 0, 0, time.UTC),
			want:  time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC),
			delay: time.Hour,
		},
		{
			name:  "end of day wraps",
			now:   time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC),
			want:  time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
			delay: time.Second,
		},
		{
			name:  "non-utc input evaluated in utc",
			now:   time.Date(2025, 3, 14, 14, 37, 0, 0, time.FixedZone("plus3", 3*3600)),
			want:  time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
			delay: 1380 * time.Second,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := h.NextFire(tt.now)
			if !got.Equal(tt.want) {
				t.Fatalf("NextFire(%v) = %v, want %v", tt.now, got, tt.want)
			}
			if d := got.Sub(tt.now); d != tt.delay {
				t.Fatalf("delay = %v, want %v", d, tt.delay)
			}
		})
	}
}

func TestRunFiresOnBoundary(t *testing.T) {
	t.Parallel()
	fired := make(chan struct{}, 1)
	h := NewHourly(func(context.Context) {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, logx.Nop())

	// Pin "now" just before a boundary so the first fire is immediate-ish.
	h.now = func() time.Time {
		return time.Date(2025, 3, 14, 14, 59, 59, int(time.Second-10*time.Millisecond), time.UTC)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not fire at the boundary")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	h := NewHourly(func(context.Context) {
		t.Error("pass must not fire before the boundary")
	}, logx.Nop())
	// Pin "now" mid-hour so the boundary is far away.
	h.now = func() time.Time {
		return time.Date(2025, 3, 14, 14, 30, 0, 0, time.UTC)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
