package cronrunner

import (
	"context"
	"testing"
	"time"
)

func TestEveryRejectsNonPositiveInterval(t *testing.T) {
	r := New(nil, context.Background())
	if _, err := r.Every(0, func(context.Context) {}); err == nil {
		t.Fatalf("want error for zero interval")
	}
	if _, err := r.Every(time.Minute, func(context.Context) {}); err != nil {
		t.Fatalf("every 1m: %v", err)
	}
}

func TestJobsReceiveBaseContext(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "base")
	r := New(nil, base)
	got := make(chan any, 1)
	if _, err := r.Every(time.Second, func(ctx context.Context) {
		select {
		case got <- ctx.Value(key{}):
		default:
		}
	}); err != nil {
		t.Fatalf("every: %v", err)
	}
	r.Start()
	defer r.Stop()
	select {
	case v := <-got:
		if v != "base" {
			t.Fatalf("ctx value=%v want base", v)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("job did not run")
	}
}
