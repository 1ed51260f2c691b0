package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeagents/internal/models"
	"tradeagents/internal/repository/memrepo"
	"tradeagents/internal/vectorstore"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if strings.Contains(t, "AAPL") {
			out = append(out, []float32{1, 0})
		} else {
			out = append(out, []float32{0, 1})
		}
	}
	return out, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func newAgent(store *memrepo.Store, emb *fakeEmbedder, vectors vectorstore.Store) *Agent {
	return &Agent{Repo: store, Embedder: emb, Vectors: vectors, now: func() time.Time { return testNow }}
}

func filledTrade(t *testing.T, store *memrepo.Store, id, symbol string, pnlPct *decimal.Decimal, filled time.Time) *models.Trade {
	t.Helper()
	tr := &models.Trade{
		TradeID:        id,
		Symbol:         symbol,
		Action:         models.ActionSell,
		OrderPrice:     dec("100"),
		OrderQuantity:  10,
		FilledPrice:    decp("100"),
		FilledQuantity: 10,
		Status:         models.TradeFilled,
		OrderTime:      filled,
		FilledTime:     &filled,
		Reason:         "momentum",
		PnLPct:         pnlPct,
	}
	if err := store.InsertTrade(context.Background(), tr); err != nil {
		t.Fatalf("insert trade: %v", err)
	}
	return tr
}

func TestImportanceAndType(t *testing.T) {
	cases := []struct {
		name       string
		pnlPct     *decimal.Decimal
		confidence *decimal.Decimal
		want       string
		typ        models.MemoryType
	}{
		{"no signal", nil, nil, "5", models.MemoryShortTerm},
		{"small move", decp("1.5"), nil, "5", models.MemoryShortTerm},
		{"over two", decp("-3"), nil, "6", models.MemoryShortTerm},
		{"over five", decp("6"), decp("70"), "7", models.MemoryShortTerm},
		{"big loss confident", decp("-12"), decp("90"), "9", models.MemoryLongTerm},
		{"confidence only", nil, decp("81"), "6", models.MemoryShortTerm},
		{"big move", decp("10.5"), nil, "8", models.MemoryLongTerm},
	}
	for _, tc := range cases {
		got := Importance(tc.pnlPct, tc.confidence)
		if !got.Equal(dec(tc.want)) {
			t.Fatalf("%s: importance=%s want %s", tc.name, got, tc.want)
		}
		if typ := TypeFor(got); typ != tc.typ {
			t.Fatalf("%s: type=%s want %s", tc.name, typ, tc.typ)
		}
	}
	if typ := TypeFor(dec("4.9")); typ != models.MemoryWorking {
		t.Fatalf("expected working below 5, got %s", typ)
	}
}

func TestStoreTradeWritesVectorOnce(t *testing.T) {
	ctx := context.Background()
	store := memrepo.New()
	decision := &models.DecisionRecord{Symbol: "AAPL", DecisionType: models.DecisionSell, ConfidenceScore: dec("90")}
	if err := store.InsertDecision(ctx, decision); err != nil {
		t.Fatalf("insert decision: %v", err)
	}
	tr := filledTrade(t, store, "T1", "AAPL", decp("-12"), testNow.Add(-time.Hour))
	tr.DecisionID = &decision.ID

	vectors := vectorstore.NewMemory()
	emb := &fakeEmbedder{}
	a := newAgent(store, emb, vectors)

	mem, degraded, err := a.StoreTrade(ctx, tr)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if mem == nil || degraded {
		t.Fatalf("expected memory without degradation, got %v degraded=%v", mem, degraded)
	}
	if mem.MemoryType != models.MemoryLongTerm || !mem.ImportanceScore.Equal(dec("9")) {
		t.Fatalf("unexpected memory: type=%s importance=%s", mem.MemoryType, mem.ImportanceScore)
	}
	if mem.VectorID == nil || mem.VectorCollection != vectorstore.LongTermCollection {
		t.Fatalf("expected long-term vector, got %v %q", mem.VectorID, mem.VectorCollection)
	}
	if n, _ := vectors.Count(ctx, vectorstore.LongTermCollection); n != 1 {
		t.Fatalf("expected 1 long-term vector, got %d", n)
	}
	if store.Memories[0].VectorID == nil {
		t.Fatalf("vector id not persisted")
	}
	if !strings.Contains(store.Memories[0].Content, "Trade: AAPL SELL") {
		t.Fatalf("unexpected content %q", store.Memories[0].Content)
	}

	again, _, err := a.StoreTrade(ctx, tr)
	if err != nil || again != nil {
		t.Fatalf("expected dedupe, got %v %v", again, err)
	}
	if len(store.Memories) != 1 || emb.calls != 1 {
		t.Fatalf("expected one memory and one embed call, got %d / %d", len(store.Memories), emb.calls)
	}
}

func TestEmbedFailureKeepsRow(t *testing.T) {
	ctx := context.Background()
	store := memrepo.New()
	tr := filledTrade(t, store, "T1", "MSFT", decp("3"), testNow.Add(-time.Hour))
	vectors := vectorstore.NewMemory()
	a := newAgent(store, &fakeEmbedder{err: errors.New("quota")}, vectors)

	mem, degraded, err := a.StoreTrade(ctx, tr)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if !degraded || mem == nil {
		t.Fatalf("expected degraded memory, got %v %v", mem, degraded)
	}
	if len(store.Memories) != 1 || store.Memories[0].VectorID != nil {
		t.Fatalf("expected row without vector, got %+v", store.Memories)
	}
	if n, _ := vectors.Count(ctx, vectorstore.ShortTermCollection); n != 0 {
		t.Fatalf("expected no vectors, got %d", n)
	}
}

func TestSearchRanksAndTouches(t *testing.T) {
	ctx := context.Background()
	store := memrepo.New()
	vectors := vectorstore.NewMemory()
	a := newAgent(store, &fakeEmbedder{}, vectors)

	for _, tr := range []*models.Trade{
		filledTrade(t, store, "T1", "MSFT", decp("3"), testNow.Add(-2*time.Hour)),
		filledTrade(t, store, "T2", "AAPL", decp("11"), testNow.Add(-time.Hour)),
	} {
		if _, _, err := a.StoreTrade(ctx, tr); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	res, err := a.Search(ctx, "AAPL drawdown", "", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Degraded || len(res.Memories) != 1 {
		t.Fatalf("expected one hit, got %+v", res)
	}
	if res.Memories[0].SourceID != "T2" || res.Memories[0].AccessCount != 1 {
		t.Fatalf("unexpected hit %+v", res.Memories[0])
	}
	for _, m := range store.Memories {
		want := 0
		if m.SourceID == "T2" {
			want = 1
		}
		if m.AccessCount != want {
			t.Fatalf("memory %s access=%d want %d", m.SourceID, m.AccessCount, want)
		}
	}

	shortOnly, err := a.Search(ctx, "AAPL", models.MemoryShortTerm, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(shortOnly.Memories) != 1 || shortOnly.Memories[0].SourceID != "T1" {
		t.Fatalf("expected only the short-term memory, got %+v", shortOnly.Memories)
	}

	working, err := a.Search(ctx, "AAPL", models.MemoryWorking, 5)
	if err != nil || len(working.Memories) != 0 {
		t.Fatalf("working memories are not searchable, got %+v %v", working, err)
	}
}

func TestSearchDegradesWithoutEmbeddings(t *testing.T) {
	a := newAgent(memrepo.New(), &fakeEmbedder{err: errors.New("down")}, vectorstore.NewMemory())
	res, err := a.Search(context.Background(), "anything", "", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !res.Degraded || len(res.Memories) != 0 {
		t.Fatalf("expected degraded empty result, got %+v", res)
	}
}

func TestConsolidateMovesVectors(t *testing.T) {
	ctx := context.Background()
	store := memrepo.New()
	vectors := vectorstore.NewMemory()
	a := newAgent(store, &fakeEmbedder{}, vectors)

	important, err := a.StoreMemory(ctx, Note{Type: models.MemoryShortTerm, Content: "AAPL gap fill", Importance: dec("8"), Source: "manual"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := a.StoreMemory(ctx, Note{Type: models.MemoryShortTerm, Content: "MSFT drift", Importance: dec("6"), Source: "manual"}); err != nil {
		t.Fatalf("store: %v", err)
	}

	n, degraded, err := a.Consolidate(ctx)
	if err != nil || n != 1 || degraded != 0 {
		t.Fatalf("consolidate: n=%d degraded=%d err=%v", n, degraded, err)
	}
	for _, m := range store.Memories {
		if m.ID == important.ID {
			if m.MemoryType != models.MemoryLongTerm || m.VectorCollection != vectorstore.LongTermCollection {
				t.Fatalf("expected promoted memory, got %+v", m)
			}
		} else if m.MemoryType != models.MemoryShortTerm {
			t.Fatalf("memory below threshold promoted: %+v", m)
		}
	}
	if n, _ := vectors.Count(ctx, vectorstore.LongTermCollection); n != 1 {
		t.Fatalf("expected 1 long-term vector, got %d", n)
	}
	if n, _ := vectors.Count(ctx, vectorstore.ShortTermCollection); n != 1 {
		t.Fatalf("expected 1 short-term vector, got %d", n)
	}
}

func TestForgetOldUnimportantMemories(t *testing.T) {
	ctx := context.Background()
	store := memrepo.New()
	vectors := vectorstore.NewMemory()
	old := testNow.Add(-100 * 24 * time.Hour)
	a := &Agent{Repo: store, Embedder: &fakeEmbedder{}, Vectors: vectors, now: func() time.Time { return old }}

	stale, _ := a.StoreMemory(ctx, Note{Type: models.MemoryShortTerm, Content: "stale MSFT note", Importance: dec("4"), Source: "manual"})
	if _, err := a.StoreMemory(ctx, Note{Type: models.MemoryShortTerm, Content: "kept MSFT note", Importance: dec("6"), Source: "manual"}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := a.StoreMemory(ctx, Note{Type: models.MemoryWorking, Content: "scratch", Importance: dec("2"), Source: "manual"}); err != nil {
		t.Fatalf("store: %v", err)
	}
	a.now = func() time.Time { return testNow }
	if _, err := a.StoreMemory(ctx, Note{Type: models.MemoryWorking, Content: "fresh scratch", Importance: dec("1"), Source: "manual"}); err != nil {
		t.Fatalf("store: %v", err)
	}

	n, _, err := a.Forget(ctx)
	if err != nil || n != 2 {
		t.Fatalf("forget: n=%d err=%v", n, err)
	}
	forgotten := 0
	for _, m := range store.Memories {
		if m.IsForgotten {
			forgotten++
			if m.ForgottenAt == nil || !m.ForgottenAt.Equal(testNow) {
				t.Fatalf("forgotten_at not set: %+v", m)
			}
		}
	}
	if forgotten != 2 {
		t.Fatalf("expected 2 forgotten rows, got %d", forgotten)
	}
	if got, _ := vectors.Get(ctx, vectorstore.ShortTermCollection, []string{*stale.VectorID}); len(got) != 0 {
		t.Fatalf("vector of forgotten memory still present")
	}

	again, _, _ := a.Forget(ctx)
	if again != 0 {
		t.Fatalf("forgotten rows must not be forgotten twice, got %d", again)
	}
}

func TestRunOnceStoresRecentFilledTrades(t *testing.T) {
	ctx := context.Background()
	store := memrepo.New()
	filledTrade(t, store, "T1", "AAPL", decp("4"), testNow.Add(-time.Hour))
	filledTrade(t, store, "T2", "MSFT", nil, testNow.Add(-2*time.Hour))
	filledTrade(t, store, "T3", "MSFT", nil, testNow.Add(-48*time.Hour))
	pending := &models.Trade{TradeID: "T4", Symbol: "AAPL", Action: models.ActionBuy, Status: models.TradePending, OrderTime: testNow}
	if err := store.InsertTrade(ctx, pending); err != nil {
		t.Fatalf("insert: %v", err)
	}

	a := newAgent(store, &fakeEmbedder{}, vectorstore.NewMemory())
	summary, err := a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary["stored"] != 2 || summary["consolidated"] != 0 || summary["forgotten"] != 0 {
		t.Fatalf("unexpected summary %v", summary)
	}

	summary, err = a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary["stored"] != 0 || len(store.Memories) != 2 {
		t.Fatalf("expected no new memories, got %v / %d", summary, len(store.Memories))
	}
}
