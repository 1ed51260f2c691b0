package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeagents/internal/agent"
	"tradeagents/internal/llm"
	"tradeagents/internal/models"
	"tradeagents/internal/repository"
	"tradeagents/internal/telemetry"
	"tradeagents/internal/vectorstore"
)

const (
	SourceTrade = "trade"

	defaultForgetAfter = 90 * 24 * time.Hour
	defaultStoreBatch  = 10
	defaultSearchK     = 5
	tradeLookback      = 24 * time.Hour
)

type Agent struct {
	Repo     repository.Repository
	Embedder llm.Embedder
	Vectors  vectorstore.Store
	Metrics  *telemetry.Metrics
	Logger   *zap.Logger

	ForgetAfter time.Duration
	StoreBatch  int

	now func() time.Time
}

// Note is a memory to store that did not come from a trade.
type Note struct {
	Type       models.MemoryType
	Content    string
	Summary    string
	Importance decimal.Decimal
	Source     string
	SourceID   string
	Symbols    []string
	What       string
	Why        string
	How        string
	Metadata   map[string]any
}

type SearchResult struct {
	Memories []models.AgentMemory `json:"memories"`
	Degraded bool                 `json:"degraded"`
}

// CollectionFor returns the vector collection of a memory type; working memories have none.
func CollectionFor(t models.MemoryType) string {
	switch t {
	case models.MemoryShortTerm:
		return vectorstore.ShortTermCollection
	case models.MemoryLongTerm, models.MemoryEpisodic:
		return vectorstore.LongTermCollection
	default:
		return ""
	}
}

func (a *Agent) Name() models.AgentType { return models.AgentMemoryStage }

func (a *Agent) RunOnce(ctx context.Context) (agent.Summary, error) {
	degraded := 0
	stored, d, err := a.storeRecentTrades(ctx)
	if err != nil {
		return nil, err
	}
	degraded += d
	consolidated, d, err := a.Consolidate(ctx)
	if err != nil {
		return nil, err
	}
	degraded += d
	forgotten, d, err := a.Forget(ctx)
	if err != nil {
		return nil, err
	}
	degraded += d

	summary := agent.Summary{
		"stored":       stored,
		"consolidated": consolidated,
		"forgotten":    forgotten,
	}
	summary[agent.SummaryDegraded] = degraded
	return summary, nil
}

func (a *Agent) storeRecentTrades(ctx context.Context) (stored, degraded int, err error) {
	since := a.clock().Add(-tradeLookback)
	status := models.TradeFilled
	trades, err := a.Repo.ListTrades(ctx, repository.ListTradesParams{Status: &status, FilledSince: &since, Limit: 200})
	if err != nil {
		return 0, 0, fmt.Errorf("load trades: %w", err)
	}
	for i := range trades {
		if stored >= a.storeBatch() {
			break
		}
		mem, deg, err := a.StoreTrade(ctx, &trades[i])
		if err != nil {
			return stored, degraded, err
		}
		if deg {
			degraded++
		}
		if mem != nil {
			stored++
		}
	}
	return stored, degraded, nil
}

// StoreTrade writes one trade memory. It returns (nil, false, nil) when the trade
// already has one. degraded reports that the vector could not be written.
func (a *Agent) StoreTrade(ctx context.Context, trade *models.Trade) (*models.AgentMemory, bool, error) {
	existing, err := a.Repo.GetMemoryBySource(ctx, SourceTrade, trade.TradeID)
	if err != nil {
		return nil, false, fmt.Errorf("check memory for %s: %w", trade.TradeID, err)
	}
	if existing != nil {
		return nil, false, nil
	}

	var confidence *decimal.Decimal
	if trade.DecisionID != nil {
		d, err := a.Repo.GetDecisionByID(ctx, *trade.DecisionID)
		if err != nil {
			return nil, false, fmt.Errorf("load decision: %w", err)
		}
		if d != nil {
			confidence = &d.ConfidenceScore
		}
	}
	importance := Importance(trade.PnLPct, confidence)

	price := "n/a"
	if trade.FilledPrice != nil {
		price = trade.FilledPrice.String()
	}
	content := strings.Join([]string{
		fmt.Sprintf("Trade: %s %s", trade.Symbol, trade.Action),
		fmt.Sprintf("Price: %s", price),
		fmt.Sprintf("Quantity: %d", trade.FilledQuantity),
		fmt.Sprintf("PnL: %s (%s%%)", decString(trade.PnL), decString(trade.PnLPct)),
		fmt.Sprintf("Reason: %s", trade.Reason),
	}, "\n")

	at := trade.OrderTime
	mem := &models.AgentMemory{
		MemoryType:      TypeFor(importance),
		Content:         content,
		Summary:         fmt.Sprintf("%s %s %s%%", trade.Symbol, trade.Action, decString(trade.PnLPct)),
		ImportanceScore: importance,
		When:            &at,
		Where:           trade.Symbol,
		What:            fmt.Sprintf("%s %d shares", trade.Action, trade.FilledQuantity),
		Who:             "AI",
		Why:             trade.Reason,
		How:             "via the decision debate",
		RelatedSymbols:  models.EncodeJSON([]string{trade.Symbol}),
		RelatedTrades:   models.EncodeJSON([]string{trade.TradeID}),
		Metadata:        models.EncodeJSON(map[string]any{}),
		Source:          SourceTrade,
		SourceID:        trade.TradeID,
		CreatedAt:       a.clock(),
	}
	if err := a.Repo.InsertMemory(ctx, mem); err != nil {
		return nil, false, fmt.Errorf("insert memory: %w", err)
	}
	degraded := a.attachVector(ctx, mem, map[string]any{
		"symbol":    trade.Symbol,
		"timestamp": at.UTC().Format(time.RFC3339),
	})
	a.log().Info("trade memory stored",
		zap.Uint64("memory_id", mem.ID),
		zap.String("trade_id", trade.TradeID),
		zap.String("type", string(mem.MemoryType)),
		zap.String("importance", importance.String()),
	)
	return mem, degraded, nil
}

// StoreMemory writes a free-form memory such as a daily review.
func (a *Agent) StoreMemory(ctx context.Context, n Note) (*models.AgentMemory, error) {
	if strings.TrimSpace(n.Content) == "" {
		return nil, fmt.Errorf("memory: empty content")
	}
	if n.Type == "" {
		n.Type = TypeFor(n.Importance)
	}
	meta := n.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	now := a.clock()
	mem := &models.AgentMemory{
		MemoryType:      n.Type,
		Content:         n.Content,
		Summary:         n.Summary,
		ImportanceScore: clamp(n.Importance),
		When:            &now,
		What:            n.What,
		Who:             "AI",
		Why:             n.Why,
		How:             n.How,
		RelatedSymbols:  models.EncodeJSON(orEmpty(n.Symbols)),
		RelatedTrades:   models.EncodeJSON([]string{}),
		Metadata:        models.EncodeJSON(meta),
		Source:          n.Source,
		SourceID:        n.SourceID,
		CreatedAt:       now,
	}
	if err := a.Repo.InsertMemory(ctx, mem); err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	a.attachVector(ctx, mem, map[string]any{"source": n.Source})
	return mem, nil
}

// attachVector embeds mem and writes it to its type's collection. Working memories
// are skipped. It reports whether a step degraded; the row is kept either way.
func (a *Agent) attachVector(ctx context.Context, mem *models.AgentMemory, meta map[string]any) bool {
	collection := CollectionFor(mem.MemoryType)
	if collection == "" || a.Vectors == nil {
		return false
	}
	if a.Embedder == nil {
		agent.NoteDegraded(ctx, a.log(), a.Metrics, models.AgentMemoryStage, "embed", llm.ErrNotConfigured)
		return true
	}
	vectors, err := a.Embedder.Embed(ctx, []string{mem.Content})
	if err == nil && len(vectors) != 1 {
		err = fmt.Errorf("embedding: got %d vectors", len(vectors))
	}
	if err != nil {
		agent.NoteDegraded(ctx, a.log(), a.Metrics, models.AgentMemoryStage, "embed", err)
		return true
	}

	meta["memory_id"] = strconv.FormatUint(mem.ID, 10)
	meta["importance"] = mem.ImportanceScore.InexactFloat64()
	meta["type"] = string(mem.MemoryType)
	vectorID := uuid.NewString()
	doc := vectorstore.Document{ID: vectorID, Content: mem.Content, Metadata: meta, Embedding: vectors[0]}
	if err := a.Vectors.Add(ctx, collection, []vectorstore.Document{doc}); err != nil {
		agent.NoteDegraded(ctx, a.log(), a.Metrics, models.AgentMemoryStage, "vector_add", err)
		return true
	}
	mem.VectorID = &vectorID
	mem.VectorCollection = collection
	if err := a.Repo.UpdateMemory(ctx, mem); err != nil {
		a.log().Warn("memory vector id not saved", zap.Uint64("memory_id", mem.ID), zap.Error(err))
	}
	return false
}

// Search finds the k memories closest to query. An empty type searches both the
// short- and long-term collections. Returned rows have their access counters bumped.
func (a *Agent) Search(ctx context.Context, query string, typ models.MemoryType, k int) (SearchResult, error) {
	out := SearchResult{Memories: []models.AgentMemory{}}
	if k <= 0 {
		k = defaultSearchK
	}
	if strings.TrimSpace(query) == "" || a.Vectors == nil {
		return out, nil
	}
	var collections []string
	if typ == "" {
		collections = []string{vectorstore.ShortTermCollection, vectorstore.LongTermCollection}
	} else if c := CollectionFor(typ); c != "" {
		collections = []string{c}
	} else {
		return out, nil
	}

	if a.Embedder == nil {
		agent.NoteDegraded(ctx, a.log(), a.Metrics, models.AgentMemoryStage, "search_embed", llm.ErrNotConfigured)
		out.Degraded = true
		return out, nil
	}
	vectors, err := a.Embedder.Embed(ctx, []string{query})
	if err == nil && len(vectors) != 1 {
		err = fmt.Errorf("embedding: got %d vectors", len(vectors))
	}
	if err != nil {
		agent.NoteDegraded(ctx, a.log(), a.Metrics, models.AgentMemoryStage, "search_embed", err)
		out.Degraded = true
		return out, nil
	}

	var hits []vectorstore.Match
	for _, c := range collections {
		found, err := a.Vectors.Query(ctx, c, vectors[0], k, nil)
		if err != nil {
			agent.NoteDegraded(ctx, a.log(), a.Metrics, models.AgentMemoryStage, "search_query", err)
			out.Degraded = true
			continue
		}
		hits = append(hits, found...)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	if len(hits) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	rows, err := a.Repo.ListMemories(ctx, repository.ListMemoriesParams{VectorIDs: ids, Limit: len(ids)})
	if err != nil {
		return out, fmt.Errorf("load memories: %w", err)
	}
	byVector := make(map[string]models.AgentMemory, len(rows))
	for _, r := range rows {
		if r.VectorID != nil {
			byVector[*r.VectorID] = r
		}
	}
	now := a.clock()
	touched := make([]uint64, 0, len(ids))
	for _, id := range ids {
		r, ok := byVector[id]
		if !ok {
			continue
		}
		r.AccessCount++
		r.LastAccessed = &now
		out.Memories = append(out.Memories, r)
		touched = append(touched, r.ID)
	}
	if err := a.Repo.TouchMemories(ctx, touched, now); err != nil {
		a.log().Warn("memory access not recorded", zap.Error(err))
	}
	return out, nil
}

// Consolidate promotes short-term memories with importance ≥ 8 to long-term and moves
// their vectors. Vector moves are best-effort.
func (a *Agent) Consolidate(ctx context.Context) (int, int, error) {
	floor := longTermFloor
	rows, err := a.Repo.ListMemories(ctx, repository.ListMemoriesParams{
		Types:         []models.MemoryType{models.MemoryShortTerm},
		MinImportance: &floor,
		Limit:         500,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("load memories to consolidate: %w", err)
	}
	degraded := 0
	for i := range rows {
		mem := &rows[i]
		mem.MemoryType = models.MemoryLongTerm
		if mem.VectorID != nil && a.Vectors != nil {
			from := mem.VectorCollection
			if from == "" {
				from = vectorstore.ShortTermCollection
			}
			if err := vectorstore.Move(ctx, a.Vectors, from, vectorstore.LongTermCollection, []string{*mem.VectorID}); err != nil {
				agent.NoteDegraded(ctx, a.log(), a.Metrics, models.AgentMemoryStage, "vector_move", err)
				degraded++
			} else {
				mem.VectorCollection = vectorstore.LongTermCollection
			}
		}
		if err := a.Repo.UpdateMemory(ctx, mem); err != nil {
			return i, degraded, fmt.Errorf("update memory %d: %w", mem.ID, err)
		}
	}
	if len(rows) > 0 {
		a.log().Info("memories consolidated", zap.Int("count", len(rows)))
	}
	return len(rows), degraded, nil
}

// Forget soft-deletes old working and short-term memories with importance below 5.
func (a *Agent) Forget(ctx context.Context) (int, int, error) {
	now := a.clock()
	cutoff := now.Add(-a.forgetAfter())
	below := shortTermFloor
	rows, err := a.Repo.ListMemories(ctx, repository.ListMemoriesParams{
		Types:           []models.MemoryType{models.MemoryWorking, models.MemoryShortTerm},
		BelowImportance: &below,
		CreatedBefore:   &cutoff,
		Limit:           500,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("load memories to forget: %w", err)
	}
	degraded := 0
	for i := range rows {
		mem := &rows[i]
		mem.IsForgotten = true
		mem.ForgottenAt = &now
		if err := a.Repo.UpdateMemory(ctx, mem); err != nil {
			return i, degraded, fmt.Errorf("update memory %d: %w", mem.ID, err)
		}
		if mem.VectorID != nil && a.Vectors != nil {
			collection := mem.VectorCollection
			if collection == "" {
				collection = vectorstore.ShortTermCollection
			}
			if err := a.Vectors.Delete(ctx, collection, []string{*mem.VectorID}); err != nil {
				agent.NoteDegraded(ctx, a.log(), a.Metrics, models.AgentMemoryStage, "vector_delete", err)
				degraded++
			}
		}
	}
	if len(rows) > 0 {
		a.log().Info("memories forgotten", zap.Int("count", len(rows)))
	}
	return len(rows), degraded, nil
}

func decString(d *decimal.Decimal) string {
	if d == nil {
		return "n/a"
	}
	return d.StringFixed(2)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (a *Agent) forgetAfter() time.Duration {
	if a.ForgetAfter > 0 {
		return a.ForgetAfter
	}
	return defaultForgetAfter
}

func (a *Agent) storeBatch() int {
	if a.StoreBatch > 0 {
		return a.StoreBatch
	}
	return defaultStoreBatch
}

func (a *Agent) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now().UTC()
}

func (a *Agent) log() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
