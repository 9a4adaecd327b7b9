package sleeper

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSleeperReturnsValue(t *testing.T) {
	s := &Sleeper{Delay: 5 * time.Millisecond, Value: 7}
	v, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 7 {
		t.Fatalf("expected 7 got %v", v)
	}
}

func TestSleeperStopsOnCancel(t *testing.T) {
	s := &Sleeper{Delay: time.Second}
	cause := errors.New("enough")
	ctx, cancel := context.WithCancelCause(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel(cause)
	}()

	start := time.Now()
	_, err := s.Run(ctx)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cancel cause, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("sleeper ignored cancellation")
	}
}

func TestNewBusySleeperRejectsShortDelay(t *testing.T) {
	if _, err := NewBusySleeper(5 * time.Millisecond); err == nil {
		t.Fatalf("expected error for delay under %v", MinBusyDelay)
	}
}

func TestBusySleeperFinishes(t *testing.T) {
	b, err := NewBusySleeper(20 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Finished() {
		t.Fatalf("expected Finished() to be true")
	}
	if b.Iterations() == 0 {
		t.Fatalf("expected some iterations")
	}
}

func TestBusySleeperStopsOnCancel(t *testing.T) {
	b, _ := NewBusySleeper(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if b.Finished() {
		t.Fatalf("expected Finished() to be false")
	}
}
