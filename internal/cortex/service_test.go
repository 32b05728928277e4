package cortex

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
	"github.com/nidhogg/cerebro-cortex/internal/store/memstore"
)

const tenant = "tenant-1"

// bagEmbedder hashes lowercase words into a fixed number of buckets, so
// texts sharing words have positive cosine similarity.
type bagEmbedder struct {
	mu    sync.Mutex
	fail  error
	calls int
}

func (e *bagEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail != nil {
		return nil, e.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bagOfWords(t)
	}
	return out, nil
}

func (e *bagEmbedder) Dimension() int { return 1024 }

func (e *bagEmbedder) setFail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = err
}

func bagOfWords(text string) []float32 {
	vec := make([]float32, 1024)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'')
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%1024]++
	}
	return vec
}

type fixture struct {
	svc      *Service
	store    *memstore.Store
	embedder *bagEmbedder
}

// newFixture returns a service whose clock advances one second per reading.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	emb := &bagEmbedder{}
	svc := New(st, emb, DefaultConfig(), zap.NewNop())

	var mu sync.Mutex
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	t.Cleanup(svc.Wait)
	return &fixture{svc: svc, store: st, embedder: emb}
}

func (f *fixture) remember(t *testing.T, req RememberRequest) *RememberResult {
	t.Helper()
	res, err := f.svc.Remember(context.Background(), tenant, req)
	if err != nil {
		t.Fatalf("Remember(%q): %v", req.Content, err)
	}
	if res == nil {
		t.Fatalf("Remember(%q) was filtered", req.Content)
	}
	return res
}

func TestRememberScenarioA(t *testing.T) {
	f := newFixture(t)
	res := f.remember(t, RememberRequest{
		Content: "User's name is Alex, please remember this fact",
		AgentID: "AZOTH",
	})

	if res.Action != ActionStored {
		t.Errorf("action = %q, want stored", res.Action)
	}
	if res.MemoryType != memory.TypeSemantic {
		t.Errorf("type = %q, want semantic", res.MemoryType)
	}
	if res.Layer != memory.LayerWorking {
		t.Errorf("layer = %q, want working", res.Layer)
	}
	if res.Salience <= 0.5 {
		t.Errorf("salience = %v, want boosted above 0.5", res.Salience)
	}
	if !res.Embedded {
		t.Error("expected node to be embedded")
	}

	n, err := f.store.GetNode(context.Background(), tenant, res.ID)
	if err != nil || n == nil {
		t.Fatalf("GetNode: %v, %v", n, err)
	}
	if want := 0.5 + n.Salience*2.5; math.Abs(n.Strength.Stability-want) > 1e-9 {
		t.Errorf("stability = %v, want %v", n.Strength.Stability, want)
	}
	if n.AgentID != "AZOTH" || n.Visibility != memory.VisibilityShared {
		t.Errorf("agent/visibility = %q/%q", n.AgentID, n.Visibility)
	}
}

func TestRememberFiltersShortContent(t *testing.T) {
	f := newFixture(t)
	for _, content := range []string{"", "hi", "   short   ", "123456789"} {
		res, err := f.svc.Remember(context.Background(), tenant, RememberRequest{Content: content})
		if err != nil {
			t.Errorf("Remember(%q) err = %v", content, err)
		}
		if res != nil {
			t.Errorf("Remember(%q) = %+v, want nil", content, res)
		}
	}
	st, _ := f.svc.Stats(context.Background(), tenant)
	if st.Nodes != 0 {
		t.Errorf("nodes = %d, want 0", st.Nodes)
	}
}

func TestRememberSalienceBounds(t *testing.T) {
	f := newFixture(t)
	inputs := []string{
		"a plain sentence of text",
		"IMPORTANT! Critical urgent must remember: the key priority note is essential, always!",
		strings.Repeat("long content about many different things ", 20),
	}
	for _, content := range inputs {
		res := f.remember(t, RememberRequest{Content: content, Tags: []string{"a", "b", "c", "d", "e"}})
		if res.Salience < 0.1 || res.Salience > 1.0 {
			t.Errorf("salience %v out of bounds for %q", res.Salience, content)
		}
	}
	over := 3.0
	res := f.remember(t, RememberRequest{Content: "salience hint is far too large", Salience: &over})
	if res.Salience != 1.0 {
		t.Errorf("hinted salience = %v, want clamped to 1", res.Salience)
	}
}

func TestRememberDedup(t *testing.T) {
	f := newFixture(t)
	first := f.remember(t, RememberRequest{Content: "The deploy key lives in the vault"})
	second := f.remember(t, RememberRequest{Content: "  The deploy key lives in the vault  "})

	if second.Action != ActionStrengthened {
		t.Fatalf("action = %q, want strengthened", second.Action)
	}
	if second.ID != first.ID {
		t.Errorf("id = %q, want %q", second.ID, first.ID)
	}
	if second.AccessCount != 2 {
		t.Errorf("access_count = %d, want 2", second.AccessCount)
	}
	third := f.remember(t, RememberRequest{Content: "The deploy key lives in the vault"})
	if third.AccessCount != 3 {
		t.Errorf("access_count = %d, want 3", third.AccessCount)
	}

	st, _ := f.svc.Stats(context.Background(), tenant)
	if st.Nodes != 1 {
		t.Errorf("nodes = %d, want 1", st.Nodes)
	}
}

func TestRememberDedupIsPerTenant(t *testing.T) {
	f := newFixture(t)
	a := f.remember(t, RememberRequest{Content: "shared content across tenants"})
	b, err := f.svc.Remember(context.Background(), "tenant-2", RememberRequest{Content: "shared content across tenants"})
	if err != nil || b == nil {
		t.Fatalf("Remember: %v, %v", b, err)
	}
	if b.Action != ActionStored || b.ID == a.ID {
		t.Errorf("second tenant got %+v, want a new node", b)
	}
}

func TestRememberEmbeddingFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.embedder.setFail(errors.New("provider down"))

	res := f.remember(t, RememberRequest{Content: "stored even when embedding fails"})
	if res.Embedded {
		t.Error("expected node without embedding")
	}
	n, _ := f.store.GetNode(context.Background(), tenant, res.ID)
	if len(n.Embedding) != 0 {
		t.Errorf("embedding length = %d, want 0", len(n.Embedding))
	}
}

func TestRememberStoreFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.store.SetFailures(errors.New("disk full"), nil, nil)

	res, err := f.svc.Remember(context.Background(), tenant, RememberRequest{Content: "this write must fail loudly"})
	if err == nil {
		t.Fatalf("expected error, got %+v", res)
	}
}

func TestRememberContextLinks(t *testing.T) {
	f := newFixture(t)
	a := f.remember(t, RememberRequest{Content: "first context memory here"})
	b := f.remember(t, RememberRequest{Content: "second context memory here"})
	c := f.remember(t, RememberRequest{
		Content:    "a memory created in context",
		ContextIDs: []string{a.ID, b.ID, a.ID, ""},
	})

	for _, src := range []string{a.ID, b.ID} {
		l, ok := f.store.Link(tenant, src, c.ID, memory.LinkContextual)
		if !ok {
			t.Fatalf("missing contextual link %s -> %s", src, c.ID)
		}
		if l.Weight != 0.5 || l.Origin != memory.OriginSystem {
			t.Errorf("link = %+v", l)
		}
	}
	total, _, _ := f.store.LinkStats(context.Background(), tenant)
	if total != 2 {
		t.Errorf("links = %d, want 2", total)
	}
}

func TestRememberContextLinksCapped(t *testing.T) {
	f := newFixture(t)
	var ids []string
	for i := 0; i < 12; i++ {
		r := f.remember(t, RememberRequest{Content: "context memory number " + strings.Repeat("x", i+1)})
		ids = append(ids, r.ID)
	}
	f.remember(t, RememberRequest{Content: "memory with too many context ids", ContextIDs: ids})

	total, _, _ := f.store.LinkStats(context.Background(), tenant)
	if total != 10 {
		t.Errorf("links = %d, want 10", total)
	}
}

func TestRememberContextLinkFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	a := f.remember(t, RememberRequest{Content: "context memory for failing link"})
	f.store.SetFailures(nil, errors.New("graph unavailable"), nil)

	res, err := f.svc.Remember(context.Background(), tenant, RememberRequest{
		Content:    "node survives link failures",
		ContextIDs: []string{a.ID},
	})
	if err != nil || res == nil || res.Action != ActionStored {
		t.Fatalf("Remember = %+v, %v; want stored", res, err)
	}
}

func TestRememberSessionChain(t *testing.T) {
	f := newFixture(t)
	a := f.remember(t, RememberRequest{Content: "first message in the session", SessionID: "s1"})
	b := f.remember(t, RememberRequest{Content: "second message in the session", SessionID: "s1"})
	f.remember(t, RememberRequest{Content: "message in another session", SessionID: "s2"})

	l, ok := f.store.Link(tenant, a.ID, b.ID, memory.LinkTemporal)
	if !ok {
		t.Fatal("expected temporal link between consecutive session nodes")
	}
	if l.Weight != 0.5 {
		t.Errorf("weight = %v, want 0.5", l.Weight)
	}
	total, _, _ := f.store.LinkStats(context.Background(), tenant)
	if total != 1 {
		t.Errorf("links = %d, want 1", total)
	}
}

func TestRecallScenarioB(t *testing.T) {
	f := newFixture(t)
	a := f.remember(t, RememberRequest{
		Content: "User's name is Alex, please remember this fact",
		AgentID: "AZOTH",
	})

	results, err := f.svc.Recall(context.Background(), tenant, RecallRequest{Query: "what is the user's name?", TopK: 5})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if results[0].MemoryID != a.ID {
		t.Errorf("first result = %q, want %q", results[0].MemoryID, a.ID)
	}
	if results[0].VectorSimilarity <= 0.3 {
		t.Errorf("similarity = %v, want > 0.3", results[0].VectorSimilarity)
	}
}

func TestRecallOrdering(t *testing.T) {
	f := newFixture(t)
	for _, c := range []string{
		"the cat sat on the warm mat",
		"dogs chase the cat around the yard",
		"quarterly revenue grew by ten percent",
		"the mat was bought at the market",
		"important: the cat needs its vaccine",
	} {
		f.remember(t, RememberRequest{Content: c})
	}

	results, err := f.svc.Recall(context.Background(), tenant, RecallRequest{Query: "where is the cat", TopK: 4})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("score[%d]=%v > score[%d]=%v", i, results[i].Score, i-1, results[i-1].Score)
		}
	}
}

func TestRecallDegradesWithoutEmbedding(t *testing.T) {
	f := newFixture(t)
	for _, c := range []string{
		"first degraded memory entry",
		"second degraded memory entry",
		"third degraded memory entry",
	} {
		f.remember(t, RememberRequest{Content: c})
	}
	f.embedder.setFail(errors.New("timeout"))

	results, err := f.svc.Recall(context.Background(), tenant, RecallRequest{Query: "anything at all", TopK: 2})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if !r.Degraded {
			t.Errorf("result %s not marked degraded", r.MemoryID)
		}
		if r.Score != r.Salience {
			t.Errorf("degraded score = %v, want salience %v", r.Score, r.Salience)
		}
	}
	if results[0].Content != "third degraded memory entry" {
		t.Errorf("first = %q, want the newest memory", results[0].Content)
	}
}

func TestRecallWithoutEmbedderDegrades(t *testing.T) {
	st := memstore.New()
	svc := New(st, nil, Config{}, zap.NewNop())
	if _, err := svc.Remember(context.Background(), tenant, RememberRequest{Content: "no embedder configured here"}); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	results, err := svc.Recall(context.Background(), tenant, RecallRequest{Query: "embedder"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 1 || !results[0].Degraded {
		t.Errorf("results = %+v", results)
	}
}

func TestRecallRejectsUnknownMemoryType(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Recall(context.Background(), tenant, RecallRequest{Query: "q", MemoryTypes: []string{"dreams"}})
	if !IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestRecallFiltersPrivateMemories(t *testing.T) {
	f := newFixture(t)
	f.remember(t, RememberRequest{Content: "secret plan of agent one", AgentID: "one", Visibility: "private"})
	f.remember(t, RememberRequest{Content: "shared plan for everyone", AgentID: "one"})

	results, err := f.svc.Recall(context.Background(), tenant, RecallRequest{Query: "plan", AgentID: "two"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	for _, r := range results {
		if strings.Contains(r.Content, "secret") {
			t.Errorf("agent two recalled a private memory of agent one")
		}
	}
}

func TestRecallReinforcesTopResults(t *testing.T) {
	f := newFixture(t)
	a := f.remember(t, RememberRequest{Content: "reinforcement target memory"})

	if _, err := f.svc.Recall(context.Background(), tenant, RecallRequest{Query: "reinforcement target"}); err != nil {
		t.Fatalf("Recall: %v", err)
	}
	f.svc.Wait()

	n, _ := f.store.GetNode(context.Background(), tenant, a.ID)
	if n.Strength.AccessCount != 2 {
		t.Errorf("access_count = %d, want 2", n.Strength.AccessCount)
	}
}

func TestRecallSpreadsAndStrengthensLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seed := f.remember(t, RememberRequest{Content: "the orchard grows apples"})

	// An unembedded node is only reachable by association.
	f.embedder.setFail(errors.New("offline"))
	linked := f.remember(t, RememberRequest{Content: "cider is pressed every autumn"})
	f.embedder.setFail(nil)

	if _, err := f.svc.Associate(ctx, tenant, AssociateRequest{
		SourceID: seed.ID, TargetID: linked.ID, LinkType: "causal", Weight: 0.8,
	}); err != nil {
		t.Fatalf("Associate: %v", err)
	}

	results, err := f.svc.Recall(ctx, tenant, RecallRequest{Query: "the orchard grows apples", TopK: 5})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	var found *RecallResult
	for i := range results {
		if results[i].MemoryID == linked.ID {
			found = &results[i]
		}
	}
	if found == nil {
		t.Fatalf("associated node missing from results: %+v", results)
	}
	want := 1.0 * 0.8 * 0.9 * 0.6
	if math.Abs(found.Activation-want) > 1e-9 {
		t.Errorf("activation = %v, want %v", found.Activation, want)
	}

	f.svc.Wait()
	l, _ := f.store.Link(tenant, seed.ID, linked.ID, memory.LinkCausal)
	if math.Abs(l.Weight-0.85) > 1e-9 {
		t.Errorf("weight after recall = %v, want 0.85", l.Weight)
	}
}

func TestRecallSurvivesReinforcementFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seed := f.remember(t, RememberRequest{Content: "the orchard grows apples"})
	f.embedder.setFail(errors.New("offline"))
	linked := f.remember(t, RememberRequest{Content: "cider is pressed every autumn"})
	f.embedder.setFail(nil)
	if _, err := f.svc.Associate(ctx, tenant, AssociateRequest{
		SourceID: seed.ID, TargetID: linked.ID, LinkType: "causal", Weight: 0.8,
	}); err != nil {
		t.Fatalf("Associate: %v", err)
	}

	f.store.SetFailures(nil, errors.New("graph unavailable"), errors.New("disk full"))
	results, err := f.svc.Recall(ctx, tenant, RecallRequest{Query: "the orchard grows apples", TopK: 5})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	snapshot := append([]RecallResult(nil), results...)
	f.svc.Wait()

	if len(results) != 2 || results[0].MemoryID != seed.ID || results[1].MemoryID != linked.ID {
		t.Fatalf("results = %+v", results)
	}
	for i := range results {
		if results[i].MemoryID != snapshot[i].MemoryID || results[i].Score != snapshot[i].Score {
			t.Errorf("result %d changed after reinforcement: %+v -> %+v", i, snapshot[i], results[i])
		}
	}

	f.store.SetFailures(nil, nil, nil)
	n, _ := f.store.GetNode(ctx, tenant, seed.ID)
	if n.Strength.AccessCount != 1 {
		t.Errorf("access_count = %d, want 1 after failed reinforcement", n.Strength.AccessCount)
	}
	l, _ := f.store.Link(tenant, seed.ID, linked.ID, memory.LinkCausal)
	if l.Weight != 0.8 {
		t.Errorf("weight = %v, want 0.8 after failed strengthen", l.Weight)
	}
}

func TestAssociateScenarioC(t *testing.T) {
	f := newFixture(t)
	a := f.remember(t, RememberRequest{Content: "association source node"})
	b := f.remember(t, RememberRequest{Content: "association target node"})

	res, err := f.svc.Associate(context.Background(), tenant, AssociateRequest{
		SourceID: a.ID, TargetID: b.ID, LinkType: "bogus_type", Weight: 0.5,
	})
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "link_type" {
		t.Fatalf("err = %v, want link_type validation error", err)
	}
	if !errors.Is(err, memory.ErrUnknownLinkType) {
		t.Errorf("err = %v, want ErrUnknownLinkType in chain", err)
	}
	total, _, _ := f.store.LinkStats(context.Background(), tenant)
	if total != 0 {
		t.Errorf("links = %d, want 0", total)
	}
}

func TestAssociateValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		req  AssociateRequest
	}{
		{"weight above one", AssociateRequest{SourceID: "a", TargetID: "b", LinkType: "causal", Weight: 1.5}},
		{"negative weight", AssociateRequest{SourceID: "a", TargetID: "b", LinkType: "causal", Weight: -0.1}},
		{"missing source", AssociateRequest{TargetID: "b", LinkType: "causal", Weight: 0.5}},
		{"self link", AssociateRequest{SourceID: "a", TargetID: "a", LinkType: "causal", Weight: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Associate(context.Background(), tenant, tt.req); !IsValidation(err) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestAssociateIsUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.svc.Associate(ctx, tenant, AssociateRequest{SourceID: "a", TargetID: "b", LinkType: "contextual", Weight: 0.7})
	if err != nil {
		t.Fatalf("Associate: %v", err)
	}
	second, err := f.svc.Associate(ctx, tenant, AssociateRequest{SourceID: "a", TargetID: "b", LinkType: "Contextual", Weight: 0.3})
	if err != nil {
		t.Fatalf("Associate: %v", err)
	}

	if second.LinkID != first.LinkID {
		t.Errorf("link ids differ: %q vs %q", first.LinkID, second.LinkID)
	}
	if second.Weight != 0.7 {
		t.Errorf("weight = %v, want max(0.7, 0.3)", second.Weight)
	}
	if second.ActivationCount != 1 {
		t.Errorf("activation_count = %d, want 1", second.ActivationCount)
	}
	total, _, _ := f.store.LinkStats(ctx, tenant)
	if total != 1 {
		t.Errorf("links = %d, want 1", total)
	}
}

func TestStrengthenLinkNeverExceedsOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Associate(ctx, tenant, AssociateRequest{SourceID: "a", TargetID: "b", LinkType: "semantic", Weight: 0.9}); err != nil {
		t.Fatalf("Associate: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := f.store.StrengthenLink(ctx, tenant, "a", "b", 0.05); err != nil {
			t.Fatalf("StrengthenLink: %v", err)
		}
	}
	l, _ := f.store.Link(tenant, "a", "b", memory.LinkSemantic)
	if l.Weight > 1.0 {
		t.Errorf("weight = %v, want <= 1", l.Weight)
	}
}

func TestNeighbors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hub := f.remember(t, RememberRequest{Content: "hub memory with many neighbors"})
	long := f.remember(t, RememberRequest{Content: strings.Repeat("a long neighbor memory ", 20)})
	short := f.remember(t, RememberRequest{Content: "short neighbor memory"})

	f.svc.Associate(ctx, tenant, AssociateRequest{SourceID: hub.ID, TargetID: long.ID, LinkType: "semantic", Weight: 0.9})
	f.svc.Associate(ctx, tenant, AssociateRequest{SourceID: short.ID, TargetID: hub.ID, LinkType: "supports", Weight: 0.4})

	views, err := f.svc.Neighbors(ctx, tenant, hub.ID, 10)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d neighbors, want 2", len(views))
	}
	if views[0].ID != long.ID || views[0].Weight != 0.9 {
		t.Errorf("first neighbor = %+v", views[0])
	}
	if n := len([]rune(views[0].Preview)); n > 121 {
		t.Errorf("preview has %d runes", n)
	}
	if views[1].Preview != "short neighbor memory" {
		t.Errorf("preview = %q", views[1].Preview)
	}

	limited, _ := f.svc.Neighbors(ctx, tenant, hub.ID, 1)
	if len(limited) != 1 {
		t.Errorf("got %d neighbors, want 1", len(limited))
	}
	none, err := f.svc.Neighbors(ctx, tenant, "missing", 5)
	if err != nil || len(none) != 0 {
		t.Errorf("Neighbors(missing) = %v, %v", none, err)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.remember(t, RememberRequest{Content: "how to install the agent: step one, then step two", AgentID: "x"})
	b := f.remember(t, RememberRequest{Content: "Paris is the capital of France", AgentID: "y"})
	f.svc.Associate(ctx, tenant, AssociateRequest{SourceID: a.ID, TargetID: b.ID, LinkType: "contextual", Weight: 0.5})

	st, err := f.svc.Stats(ctx, tenant)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Nodes != 2 || st.Links != 1 {
		t.Errorf("nodes/links = %d/%d, want 2/1", st.Nodes, st.Links)
	}
	if st.ByType[memory.TypeProcedural] != 1 || st.ByType[memory.TypeSemantic] != 1 {
		t.Errorf("by_type = %v", st.ByType)
	}
	if st.ByLinkType[memory.LinkContextual] != 1 {
		t.Errorf("by_link_type = %v", st.ByLinkType)
	}
	if st.ByAgent["x"] != 1 || st.ByAgent["y"] != 1 {
		t.Errorf("by_agent = %v", st.ByAgent)
	}
}

func TestTenantIsRequired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Remember(ctx, "", RememberRequest{Content: "content without a tenant"}); !IsValidation(err) {
		t.Errorf("Remember err = %v", err)
	}
	if _, err := f.svc.Recall(ctx, "", RecallRequest{Query: "q"}); !IsValidation(err) {
		t.Errorf("Recall err = %v", err)
	}
	if _, err := f.svc.Stats(ctx, ""); !IsValidation(err) {
		t.Errorf("Stats err = %v", err)
	}
}

func TestNewKeepsExplicitZeroWeight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Activation = 0
	svc := New(memstore.New(), nil, cfg, nil)
	if w := svc.Config().Weights; w.Activation != 0 || w.Vector != 0.35 {
		t.Errorf("weights = %+v", w)
	}
}
