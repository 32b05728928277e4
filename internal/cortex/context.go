package cortex

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ContextBlock is one recalled memory packed for prompt injection.
type ContextBlock struct {
	MemoryID      string  `json:"memory_id"`
	Content       string  `json:"content"`
	Relevance     float64 `json:"relevance"`
	TokenEstimate int     `json:"token_estimate"`
}

// ContextBudget bounds how much recalled memory is injected.
type ContextBudget struct {
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
	MaxBlocks int `json:"max_blocks" yaml:"max_blocks"`
}

// DefaultContextBudget returns sensible defaults.
func DefaultContextBudget() ContextBudget {
	return ContextBudget{
		MaxTokens: 2000,
		MaxBlocks: 10,
	}
}

// BuildContext recalls memories for req and packs them, best first, into
// blocks within budget. Memories that do not fit are skipped.
func (s *Service) BuildContext(ctx context.Context, tenantID string, req RecallRequest, budget ContextBudget) ([]ContextBlock, error) {
	def := DefaultContextBudget()
	if budget.MaxTokens <= 0 {
		budget.MaxTokens = def.MaxTokens
	}
	if budget.MaxBlocks <= 0 {
		budget.MaxBlocks = def.MaxBlocks
	}
	if req.TopK == 0 {
		req.TopK = budget.MaxBlocks
	}

	results, err := s.Recall(ctx, tenantID, req)
	if err != nil {
		return nil, fmt.Errorf("recall for context: %w", err)
	}

	var blocks []ContextBlock
	usedTokens := 0
	for _, r := range results {
		if len(blocks) >= budget.MaxBlocks {
			break
		}
		est := estimateTokens(r.Content)
		if usedTokens+est > budget.MaxTokens {
			continue
		}
		blocks = append(blocks, ContextBlock{
			MemoryID:      r.MemoryID,
			Content:       r.Content,
			Relevance:     r.Score,
			TokenEstimate: est,
		})
		usedTokens += est
	}

	s.logger.Debug("built memory context",
		zap.String("tenant", tenantID),
		zap.String("agent", req.AgentID),
		zap.Int("blocks", len(blocks)),
		zap.Int("tokens", usedTokens))
	return blocks, nil
}

// FormatContextPrompt renders memory blocks as a system prompt section.
func FormatContextPrompt(blocks []ContextBlock) string {
	if len(blocks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[Memory Context]\n")
	for _, block := range blocks {
		fmt.Fprintf(&b, "- (relevance: %.2f) %s\n", block.Relevance, block.Content)
	}
	return b.String()
}

// estimateTokens gives a rough token count (~4 chars per token).
func estimateTokens(s string) int {
	n := len(s) / 4
	if n < 1 {
		return 1
	}
	return n
}
