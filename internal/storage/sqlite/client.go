package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/rag-agent/backend/internal/storage/models"
	"github.com/rag-agent/backend/pkg/logger"
)

// Client is the audit store. It records answered turns and feedback for
// offline review; nothing in the turn pipeline reads from it.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turn_audit (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		question TEXT NOT NULL,
		answer TEXT,
		final_decision TEXT NOT NULL,
		response_mode TEXT,
		confidence REAL,
		threshold REAL,
		documents_found INTEGER DEFAULT 0,
		success INTEGER NOT NULL,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_session ON turn_audit(session_id);
	CREATE INDEX IF NOT EXISTS idx_audit_decision ON turn_audit(final_decision);
	CREATE INDEX IF NOT EXISTS idx_audit_created ON turn_audit(created_at);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn_id TEXT NOT NULL,
		helpful INTEGER NOT NULL,
		issue_category TEXT,
		comment TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (turn_id) REFERENCES turn_audit(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_turn ON feedback(turn_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertTurnAudit(record *models.TurnAudit) error {
	query := `
		INSERT INTO turn_audit (id, session_id, turn_number, question, answer, final_decision,
			response_mode, confidence, threshold, documents_found, success, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	success := 0
	if record.Success {
		success = 1
	}

	_, err := c.db.Exec(
		query,
		record.ID,
		record.SessionID,
		record.TurnNumber,
		record.Question,
		record.Answer,
		record.FinalDecision,
		record.ResponseMode,
		record.Confidence,
		record.Threshold,
		record.DocumentsFound,
		success,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert turn audit: %w", err)
	}

	logger.Debug("Turn audited",
		zap.String("turn_id", record.ID),
		zap.String("session_id", record.SessionID),
		zap.String("decision", record.FinalDecision),
	)

	return nil
}

func (c *Client) GetSessionAudit(sessionID string, limit int) ([]models.TurnAudit, error) {
	query := `
		SELECT id, session_id, turn_number, question, answer, final_decision,
			response_mode, confidence, threshold, documents_found, success, latency_ms, created_at
		FROM turn_audit
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get session audit: %w", err)
	}
	defer rows.Close()

	var records []models.TurnAudit
	for rows.Next() {
		var r models.TurnAudit
		var success int
		var createdAt int64

		err := rows.Scan(
			&r.ID, &r.SessionID, &r.TurnNumber, &r.Question, &r.Answer, &r.FinalDecision,
			&r.ResponseMode, &r.Confidence, &r.Threshold, &r.DocumentsFound, &success,
			&r.LatencyMS, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Success = success == 1
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) DecisionCounts(since time.Time) (map[string]int, error) {
	query := `
		SELECT final_decision, COUNT(*)
		FROM turn_audit
		WHERE created_at >= ?
		GROUP BY final_decision
	`

	rows, err := c.db.Query(query, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to count decisions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var decision string
		var count int
		if err := rows.Scan(&decision, &count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[decision] = count
	}

	return counts, rows.Err()
}

func (c *Client) StoreFeedback(feedback *models.Feedback) error {
	query := `INSERT INTO feedback (turn_id, helpful, issue_category, comment, created_at) VALUES (?, ?, ?, ?, ?)`

	helpful := 0
	if feedback.Helpful {
		helpful = 1
	}

	_, err := c.db.Exec(
		query,
		feedback.TurnID,
		helpful,
		feedback.IssueCategory,
		feedback.Comment,
		time.Now().Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}

	logger.Info("Feedback stored",
		zap.String("turn_id", feedback.TurnID),
		zap.Bool("helpful", feedback.Helpful),
	)

	return nil
}
