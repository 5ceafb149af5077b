package expansion

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/rag-agent/backend/pkg/logger"
)

// Strategy names how a question should be expanded into retrieval queries.
type Strategy string

const (
	StrategyMultiTurn     Strategy = "multi_turn"
	StrategyEntityFocused Strategy = "entity_focused"
	StrategyTopicFocused  Strategy = "topic_focused"
)

// MaxQueries caps how many retrieval queries one question may expand into.
const MaxQueries = 10

const maxEntityQueries = 3

var connectivePhrases = []string{
	"also", "additionally", "furthermore", "moreover", "besides", "in addition",
}

// Each connective is matched on word boundaries so phrases embedded in longer
// words ("balso", "besideshow") never split a question.
var connectivePatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(connectivePhrases))
	for i, phrase := range connectivePhrases {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
	}
	return patterns
}()

// Context carries the conversational signals the expander qualifies
// queries with. Goal and Phase come from the session's tracked state.
type Context struct {
	History []Message
	Goal    string
	Phase   string
}

// GenerateEnhancedQueries expands one question into a bounded, deduplicated
// query set. The original question always leads; the rest qualify it with
// conversation summary, detected intent, entities, follow-up clauses and the
// session's goal and phase, in that fixed order.
func GenerateEnhancedQueries(question string, ctx Context) []string {
	question = strings.TrimSpace(question)
	queries := []string{question}

	if summary := summaryQuery(question, ctx.History); summary != "" {
		queries = append(queries, summary)
	}

	if intent := detectIntent(ctx.History); intent != "" {
		queries = append(queries, question+" "+intentQualifier(intent))
	}

	entities := extractEntities(joinContents(ctx.History))
	for i, entity := range entities {
		if i >= maxEntityQueries {
			break
		}
		queries = append(queries, question+" "+entity)
	}

	if followUp := followUpQuery(question); followUp != "" {
		queries = append(queries, followUp)
	}

	if ctx.Goal != "" {
		queries = append(queries, question+" for "+ctx.Goal)
	}
	if ctx.Phase != "" {
		queries = append(queries, question+" during "+ctx.Phase)
	}

	queries = dedupe(queries)
	if len(queries) > MaxQueries {
		queries = queries[:MaxQueries]
	}

	logger.Debug("Queries expanded",
		zap.String("question", question),
		zap.Int("count", len(queries)),
	)

	return queries
}

func summaryQuery(question string, history []Message) string {
	if len(history) == 0 {
		return ""
	}

	var terms []string
	topics := detectTopics(history)
	if len(topics) > 2 {
		topics = topics[:2]
	}
	terms = append(terms, topics...)

	entities := extractEntities(joinContents(history))
	for i, e := range entities {
		if i >= 2 {
			break
		}
		terms = append(terms, e)
	}

	if len(terms) == 0 {
		return ""
	}
	return question + " " + strings.Join(terms, " ")
}

func intentQualifier(intent string) string {
	switch intent {
	case "clarification":
		return "detailed explanation"
	case "comparison":
		return "comparison"
	case "implementation":
		return "implementation steps"
	case "troubleshooting":
		return "troubleshooting"
	case "evaluation":
		return "evaluation criteria"
	default:
		return intent
	}
}

// followUpQuery pulls the clause after the last connective phrase so a
// compound question contributes its trailing ask as its own query.
func followUpQuery(question string) string {
	best := -1
	end := 0
	for _, re := range connectivePatterns {
		matches := re.FindAllStringIndex(question, -1)
		if len(matches) == 0 {
			continue
		}
		last := matches[len(matches)-1]
		if last[0] > best {
			best = last[0]
			end = last[1]
		}
	}
	if best < 0 {
		return ""
	}

	clause := strings.Trim(strings.TrimSpace(question[end:]), ",.?! ")
	if clause == "" || strings.EqualFold(clause, question) {
		return ""
	}
	return clause
}

func dedupe(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}
