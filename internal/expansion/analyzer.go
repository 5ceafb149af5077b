package expansion

import (
	"strings"

	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/rag-agent/backend/pkg/logger"
)

// Message is one conversation turn as seen by the analyzer.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Analysis summarizes a conversation for strategy selection.
type Analysis struct {
	Complexity       float64
	ConversationType string
	Strategy         Strategy
}

const (
	TypeTechnical = "technical"
	TypeCreative  = "creative"
	TypeGeneral   = "general"
)

var technicalKeywords = []string{
	"api", "code", "function", "error", "database", "server", "deploy",
	"config", "debug", "implement", "algorithm", "query", "endpoint",
	"library", "framework", "compile", "install", "performance",
}

var creativeKeywords = []string{
	"story", "write", "design", "idea", "creative", "brainstorm", "name",
	"draft", "imagine", "style", "tone", "narrative", "poem", "slogan",
}

var intentPhrases = map[string][]string{
	"clarification":   {"what do you mean", "can you explain", "clarify", "in other words", "can you elaborate", "i don't understand"},
	"comparison":      {"compare", "versus", " vs ", "difference between", "better than", "which one"},
	"implementation":  {"how do i", "how to", "implement", "set up", "configure", "build", "integrate"},
	"troubleshooting": {"error", "not working", "broken", "fails", "failing", "fix", "debug", "issue"},
	"evaluation":      {"should i", "is it worth", "pros and cons", "evaluate", "recommend", "best choice"},
}

// intentOrder keeps intent detection deterministic when several phrase
// lists match.
var intentOrder = []string{"troubleshooting", "implementation", "comparison", "evaluation", "clarification"}

var goalKeywords = map[string][]string{
	"troubleshooting": {"fix", "error", "debug", "broken", "failing"},
	"building":        {"build", "create", "implement", "develop", "set up", "integrate"},
	"comparing":       {"compare", "choose", "decide", "versus", "which"},
	"learning":        {"learn", "understand", "explain", "what is", "how does"},
}

var goalOrder = []string{"troubleshooting", "building", "comparing", "learning"}

var refinementKeywords = []string{"optimize", "improve", "refine", "clean up", "polish", "faster"}

// Analyze scores conversation complexity as a weighted blend of message
// count, average message length, entity density and topic diversity, each
// term clamped to 1.0, and classifies the conversation by keyword counts.
func Analyze(messages []Message) Analysis {
	complexity := complexityScore(messages)
	convType := classifyType(messages)

	var strategy Strategy
	switch {
	case complexity > 0.7:
		strategy = StrategyMultiTurn
	case convType == TypeTechnical:
		strategy = StrategyEntityFocused
	case convType == TypeCreative:
		strategy = StrategyTopicFocused
	default:
		strategy = StrategyMultiTurn
	}

	logger.Debug("Conversation analyzed",
		zap.Float64("complexity", complexity),
		zap.String("type", convType),
		zap.String("strategy", string(strategy)),
	)

	return Analysis{Complexity: complexity, ConversationType: convType, Strategy: strategy}
}

func complexityScore(messages []Message) float64 {
	if len(messages) == 0 {
		return 0
	}

	var totalLen int
	for _, m := range messages {
		totalLen += len(m.Content)
	}
	avgLen := float64(totalLen) / float64(len(messages))

	entities := extractEntities(joinContents(messages))
	topics := detectTopics(messages)

	score := 0.3*clampUnit(float64(len(messages))/10) +
		0.2*clampUnit(avgLen/500) +
		0.25*clampUnit(float64(len(entities))/20) +
		0.25*clampUnit(float64(len(topics))/10)

	return score
}

func classifyType(messages []Message) string {
	text := strings.ToLower(joinContents(messages))

	technical := countMatches(text, technicalKeywords)
	creative := countMatches(text, creativeKeywords)

	switch {
	case technical > creative && technical > 0:
		return TypeTechnical
	case creative > technical && creative > 0:
		return TypeCreative
	default:
		return TypeGeneral
	}
}

// extractEntities runs named entity recognition over the text and falls
// back to capitalized-token heuristics if the NLP pipeline fails.
func extractEntities(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	doc, err := prose.NewDocument(text)
	if err != nil {
		logger.Warn("Entity extraction failed, using heuristic fallback", zap.Error(err))
		return capitalizedTokens(text)
	}

	seen := make(map[string]struct{})
	var entities []string
	for _, ent := range doc.Entities() {
		name := strings.TrimSpace(ent.Text)
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		entities = append(entities, name)
	}

	if len(entities) == 0 {
		return capitalizedTokens(text)
	}
	return entities
}

func capitalizedTokens(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,!?;:()\"'")
		if len(word) < 3 || word[0] < 'A' || word[0] > 'Z' {
			continue
		}
		key := strings.ToLower(word)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, word)
	}
	return out
}

var topicBuckets = []struct {
	name     string
	keywords []string
}{
	{"databases", []string{"database", "sql", "query", "table", "index", "schema"}},
	{"networking", []string{"network", "http", "dns", "tcp", "latency", "proxy"}},
	{"deployment", []string{"deploy", "docker", "kubernetes", "release", "rollout", "ci"}},
	{"security", []string{"security", "auth", "token", "encrypt", "permission", "vulnerab"}},
	{"performance", []string{"performance", "slow", "optimize", "cache", "memory", "cpu"}},
	{"apis", []string{"api", "endpoint", "rest", "grpc", "request", "response"}},
	{"documents", []string{"document", "file", "pdf", "upload", "page", "chunk"}},
	{"writing", []string{"write", "draft", "story", "article", "blog", "copy"}},
}

func detectTopics(messages []Message) []string {
	text := strings.ToLower(joinContents(messages))

	var topics []string
	for _, bucket := range topicBuckets {
		if countMatches(text, bucket.keywords) > 0 {
			topics = append(topics, bucket.name)
		}
	}
	return topics
}

// detectIntent scans the last three user messages against fixed phrase
// lists; the first matching intent in priority order wins.
func detectIntent(messages []Message) string {
	var userTurns []string
	for i := len(messages) - 1; i >= 0 && len(userTurns) < 3; i-- {
		if messages[i].Role == "user" {
			userTurns = append(userTurns, strings.ToLower(messages[i].Content))
		}
	}
	if len(userTurns) == 0 {
		return ""
	}

	text := strings.Join(userTurns, " ")
	for _, intent := range intentOrder {
		for _, phrase := range intentPhrases[intent] {
			if strings.Contains(text, phrase) {
				return intent
			}
		}
	}
	return ""
}

// DetectGoal infers what the conversation is driving at from the whole
// history; empty when nothing matches.
func DetectGoal(messages []Message) string {
	text := strings.ToLower(joinContents(messages))

	for _, goal := range goalOrder {
		if countMatches(text, goalKeywords[goal]) > 0 {
			return goal
		}
	}
	return ""
}

// DetectPhase places the conversation in exploration, implementation or
// refinement based on refinement cues, goal cues and depth.
func DetectPhase(messages []Message) string {
	text := strings.ToLower(joinContents(messages))

	if countMatches(text, refinementKeywords) > 0 {
		return "refinement"
	}
	if len(messages) >= 4 && countMatches(text, goalKeywords["building"]) > 0 {
		return "implementation"
	}
	return "exploration"
}

func joinContents(messages []Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, " ")
}

func countMatches(text string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			count++
		}
	}
	return count
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
