package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"tradeagents/internal/models"
	"tradeagents/internal/repository/memrepo"
)

type scriptedAgent struct {
	runs    int
	summary Summary
	err     error
	onRun   func(n int)
}

func (a *scriptedAgent) Name() models.AgentType { return models.AgentDecision }

func (a *scriptedAgent) RunOnce(ctx context.Context) (Summary, error) {
	a.runs++
	if a.onRun != nil {
		a.onRun(a.runs)
	}
	return a.summary, a.err
}

func TestRunCycleRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	hb := &Heartbeat{Repo: repo}
	a := &scriptedAgent{summary: Summary{"decisions": 2, SummaryDegraded: 3}}

	for i := 0; i < 2; i++ {
		if _, err := RunCycle(ctx, a, hb, nil, nil); err != nil {
			t.Fatalf("cycle: %v", err)
		}
	}
	row, _ := repo.GetAgentStatus(ctx, models.AgentDecision)
	if row == nil {
		t.Fatalf("missing status row")
	}
	if row.Status != models.AgentRunning || row.CurrentTask != "Idle" {
		t.Fatalf("status=%s task=%q", row.Status, row.CurrentTask)
	}
	if row.LastHeartbeat == nil {
		t.Fatalf("heartbeat not set")
	}
	m, err := models.DecodeJSON[models.AgentMetrics](row.Metrics)
	if err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if m.Runs != 2 || m.DegradedTotal != 6 {
		t.Fatalf("runs=%d degraded=%d", m.Runs, m.DegradedTotal)
	}
	if len(repo.AgentStatuses) != 1 {
		t.Fatalf("rows=%d want 1", len(repo.AgentStatuses))
	}
}

func TestRunCycleFailureCountsErrors(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	hb := &Heartbeat{Repo: repo}
	a := &scriptedAgent{err: errors.New("db down")}

	for i := 0; i < 2; i++ {
		if _, err := RunCycle(ctx, a, hb, nil, nil); err == nil {
			t.Fatalf("want error")
		}
	}
	row, _ := repo.GetAgentStatus(ctx, models.AgentDecision)
	if row.Status != models.AgentError || row.ErrorCount != 2 || row.LastError != "db down" {
		t.Fatalf("status=%s count=%d last=%q", row.Status, row.ErrorCount, row.LastError)
	}
}

func TestLoopSurvivesErrorsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := memrepo.New()
	a := &scriptedAgent{err: errors.New("boom")}
	a.onRun = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	done := make(chan error, 1)
	go func() {
		done <- Loop(ctx, a, 10*time.Millisecond, &Heartbeat{Repo: repo}, nil, nil)
	}()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v want canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("loop did not stop")
	}
	if a.runs != 3 {
		t.Fatalf("runs=%d want 3", a.runs)
	}
	row, _ := repo.GetAgentStatus(context.Background(), models.AgentDecision)
	if row.Status != models.AgentStopped {
		t.Fatalf("status=%s want stopped", row.Status)
	}
	if row.ErrorCount != 3 {
		t.Fatalf("error_count=%d want 3", row.ErrorCount)
	}
}

func TestSummaryDegraded(t *testing.T) {
	var s Summary
	if s.Degraded() != 0 {
		t.Fatalf("nil summary")
	}
	if (Summary{SummaryDegraded: int64(4)}).Degraded() != 4 {
		t.Fatalf("int64 count")
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"央行宣布降息", 2, "央行"},
		{"a央b", 2, "a央"},
		{"", 3, ""},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.n); got != tc.want {
			t.Fatalf("Truncate(%q, %d) = %q want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestFailClipsMultibyteErrors(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	hb := &Heartbeat{Repo: repo}
	msg := strings.Repeat("行情", 400)

	hb.Fail(ctx, models.AgentPerception, errors.New(msg))
	if len(repo.AgentStatuses) != 1 {
		t.Fatalf("statuses=%d", len(repo.AgentStatuses))
	}
	action := repo.AgentStatuses[0].LastAction
	if !utf8.ValidString(action) || utf8.RuneCountInString(action) != maxTextLen {
		t.Fatalf("last action has %d runes, valid=%v", utf8.RuneCountInString(action), utf8.ValidString(action))
	}
}
