package vectorstore

import (
	"context"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/samber/lo"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

// Index stores node embeddings in one Qdrant collection shared by all
// tenants. Every point carries its tenant and the fields SearchFilter needs.
type Index struct {
	client     *Client
	collection string
}

// NewIndex ensures the collection exists and returns an Index over it.
func NewIndex(ctx context.Context, client *Client, collection string, dimension uint64) (*Index, error) {
	if err := client.EnsureCollection(ctx, collection, dimension); err != nil {
		return nil, err
	}
	return &Index{client: client, collection: collection}, nil
}

// Upsert writes n's embedding and filter payload.
func (x *Index) Upsert(ctx context.Context, n *memory.Node) error {
	return x.client.Upsert(ctx, x.collection, n.ID, n.Embedding, Payload(n))
}

// Search returns nearest nodes for tenantID that pass f.
func (x *Index) Search(ctx context.Context, tenantID string, query []float32, topK int, f memory.SearchFilter) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}
	return x.client.Search(ctx, x.collection, query, uint64(topK), Filter(tenantID, f))
}

// Payload returns the point payload for n.
func Payload(n *memory.Node) map[string]*pb.Value {
	return map[string]*pb.Value{
		"tenant_id":           stringValue(n.TenantID),
		"memory_type":         stringValue(string(n.Type)),
		"visibility":          stringValue(string(n.Visibility)),
		"agent_id":            stringValue(n.AgentID),
		"conversation_thread": stringValue(n.ConversationThread),
		"salience":            doubleValue(n.Salience),
	}
}

// Filter translates a SearchFilter into a Qdrant filter with the same
// visibility rules as SearchFilter.Match.
func Filter(tenantID string, f memory.SearchFilter) *pb.Filter {
	must := []*pb.Condition{keywordCondition("tenant_id", tenantID)}
	if len(f.Types) > 0 {
		must = append(must, keywordsCondition("memory_type",
			lo.Map(f.Types, func(t memory.MemoryType, _ int) string { return string(t) })))
	}
	if f.MinSalience > 0 {
		gte := f.MinSalience
		must = append(must, &pb.Condition{ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
			Key:   "salience",
			Range: &pb.Range{Gte: &gte},
		}}})
	}
	if f.Visibility != "" {
		must = append(must, keywordCondition("visibility", string(f.Visibility)))
	}
	if f.AgentID != "" {
		must = append(must, filterCondition(&pb.Filter{Should: []*pb.Condition{
			filterCondition(&pb.Filter{MustNot: []*pb.Condition{
				keywordCondition("visibility", string(memory.VisibilityPrivate)),
			}}),
			keywordCondition("agent_id", f.AgentID),
		}}))
	}
	if f.ConversationThread != "" {
		must = append(must, filterCondition(&pb.Filter{Should: []*pb.Condition{
			filterCondition(&pb.Filter{MustNot: []*pb.Condition{
				keywordCondition("visibility", string(memory.VisibilityThread)),
			}}),
			keywordCondition("conversation_thread", f.ConversationThread),
		}}))
	}
	return &pb.Filter{Must: must}
}
