package expansion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEnhancedQueriesOriginalAlwaysFirst(t *testing.T) {
	queries := GenerateEnhancedQueries("how do I tune the index", Context{})

	require.NotEmpty(t, queries)
	assert.Equal(t, "how do I tune the index", queries[0])
}

func TestGenerateEnhancedQueriesNoHistoryIsMinimal(t *testing.T) {
	queries := GenerateEnhancedQueries("what is a vector index", Context{})

	assert.Equal(t, []string{"what is a vector index"}, queries)
}

func TestGenerateEnhancedQueriesCapAndUniqueness(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "My PostgreSQL database on Kubernetes keeps failing, how do I debug the error?"},
		{Role: "assistant", Content: "Check the connection pool configuration and the deployment logs."},
		{Role: "user", Content: "The API endpoint is slow, should I add a cache to improve performance and security?"},
	}
	ctx := Context{History: history, Goal: "troubleshooting", Phase: "implementation"}

	queries := GenerateEnhancedQueries("why is the query slow, also how do I add an index", ctx)

	assert.LessOrEqual(t, len(queries), MaxQueries)
	seen := make(map[string]bool)
	for _, q := range queries {
		key := strings.ToLower(q)
		assert.False(t, seen[key], "duplicate query %q", q)
		seen[key] = true
	}
	assert.Equal(t, "why is the query slow, also how do I add an index", queries[0])
}

func TestGenerateEnhancedQueriesIncludesGoalAndPhase(t *testing.T) {
	ctx := Context{Goal: "building", Phase: "refinement"}

	queries := GenerateEnhancedQueries("how should I shard the collection", ctx)

	assert.Contains(t, queries, "how should I shard the collection for building")
	assert.Contains(t, queries, "how should I shard the collection during refinement")
}

func TestFollowUpQuerySplitsOnConnectives(t *testing.T) {
	tests := []struct {
		question string
		want     string
	}{
		{"explain sharding, also how do I rebalance", "how do I rebalance"},
		{"explain sharding and in addition describe compaction", "describe compaction"},
		{"explain sharding", ""},
		// Connectives buried inside words must not split the question.
		{"describe the balsowood shipping process", ""},
		{"what is additive manufacturing", ""},
		{"where does the path go besides the river, also name its end", "name its end"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, followUpQuery(tt.question), "question %q", tt.question)
	}
}

func TestDetectIntentUsesPriorityOrder(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "The deploy fails with an error, how do I fix it?"},
	}

	assert.Equal(t, "troubleshooting", detectIntent(history))
}

func TestDetectIntentOnlyScansRecentUserTurns(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "compare the two options"},
		{Role: "user", Content: "tell me more"},
		{Role: "user", Content: "go on"},
		{Role: "user", Content: "thanks"},
	}

	// The comparison phrase is four user turns back, outside the window.
	assert.Equal(t, "", detectIntent(history))
}

func TestAnalyzeEmptyHistoryDefaultsToMultiTurn(t *testing.T) {
	analysis := Analyze(nil)

	assert.Equal(t, StrategyMultiTurn, analysis.Strategy)
	assert.Equal(t, TypeGeneral, analysis.ConversationType)
	assert.Zero(t, analysis.Complexity)
}

func TestAnalyzeTechnicalConversationIsEntityFocused(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "my api endpoint returns an error"},
		{Role: "assistant", Content: "check the server config"},
	}

	analysis := Analyze(history)

	assert.Equal(t, TypeTechnical, analysis.ConversationType)
	assert.Equal(t, StrategyEntityFocused, analysis.Strategy)
}

func TestAnalyzeCreativeConversationIsTopicFocused(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "help me brainstorm a story idea"},
		{Role: "assistant", Content: "sure, what narrative tone do you want?"},
	}

	analysis := Analyze(history)

	assert.Equal(t, TypeCreative, analysis.ConversationType)
	assert.Equal(t, StrategyTopicFocused, analysis.Strategy)
}

func TestAnalyzeComplexConversationIsMultiTurn(t *testing.T) {
	long := strings.Repeat("We migrated the PostgreSQL database behind the api endpoint to Kubernetes, "+
		"tuned the cache for performance, fixed an auth token security issue, rewrote the deploy "+
		"pipeline with Docker, debugged a dns network problem, and drafted a blog article about the "+
		"document upload feature. ", 3)
	var history []Message
	for i := 0; i < 12; i++ {
		history = append(history, Message{Role: "user", Content: long})
	}

	analysis := Analyze(history)

	assert.Greater(t, analysis.Complexity, 0.7)
	assert.Equal(t, StrategyMultiTurn, analysis.Strategy)
}

func TestDetectGoalAndPhase(t *testing.T) {
	building := []Message{
		{Role: "user", Content: "I want to build a new ingestion pipeline"},
		{Role: "assistant", Content: "ok"},
		{Role: "user", Content: "let's create the schema first"},
		{Role: "assistant", Content: "done"},
	}

	assert.Equal(t, "building", DetectGoal(building))
	assert.Equal(t, "implementation", DetectPhase(building))

	broken := []Message{{Role: "user", Content: "the job is failing, help me debug"}}
	assert.Equal(t, "troubleshooting", DetectGoal(broken))
	assert.Equal(t, "exploration", DetectPhase(broken))

	tuning := []Message{{Role: "user", Content: "how can I optimize this further"}}
	assert.Equal(t, "refinement", DetectPhase(tuning))
}

func TestComplexityTermsAreClamped(t *testing.T) {
	huge := strings.Repeat("word ", 300)
	var history []Message
	for i := 0; i < 12; i++ {
		history = append(history, Message{Role: "user", Content: huge})
	}

	analysis := Analyze(history)

	assert.LessOrEqual(t, analysis.Complexity, 1.0)
}
