package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-agent/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.InitSchema())
	return client
}

func sampleAudit(id, sessionID string, decision string) *models.TurnAudit {
	return &models.TurnAudit{
		ID:             id,
		SessionID:      sessionID,
		TurnNumber:     1,
		Question:       "how do I tune the index?",
		Answer:         "adjust nlist",
		FinalDecision:  decision,
		ResponseMode:   "hybrid",
		Confidence:     0.82,
		Threshold:      0.7,
		DocumentsFound: 3,
		Success:        true,
		LatencyMS:      120,
		CreatedAt:      time.Now(),
	}
}

func TestInsertAndGetSessionAudit(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertTurnAudit(sampleAudit("t1", "s1", "use_rag_results")))
	require.NoError(t, client.InsertTurnAudit(sampleAudit("t2", "s2", "use_llm_fallback")))

	records, err := client.GetSessionAudit("s1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "t1", records[0].ID)
	assert.Equal(t, "use_rag_results", records[0].FinalDecision)
	assert.True(t, records[0].Success)
	assert.Equal(t, 3, records[0].DocumentsFound)
}

func TestDecisionCounts(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertTurnAudit(sampleAudit("t1", "s1", "use_rag_results")))
	require.NoError(t, client.InsertTurnAudit(sampleAudit("t2", "s1", "use_rag_results")))
	require.NoError(t, client.InsertTurnAudit(sampleAudit("t3", "s1", "refuse_to_answer")))

	counts, err := client.DecisionCounts(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, counts["use_rag_results"])
	assert.Equal(t, 1, counts["refuse_to_answer"])
}

func TestStoreFeedback(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertTurnAudit(sampleAudit("t1", "s1", "use_rag_results")))
	require.NoError(t, client.StoreFeedback(&models.Feedback{
		TurnID:        "t1",
		Helpful:       false,
		IssueCategory: "stale_sources",
		Comment:       "docs are out of date",
	}))
}
