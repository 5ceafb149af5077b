package directive

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rag-agent/backend/pkg/logger"
)

const (
	blockStart = "[RAG_DIRECTIVE]"
	blockEnd   = "[/RAG_DIRECTIVE]"
)

// keyPattern matches every recognized directive key. Values run from the
// colon to the next recognized key (or end of text), so both one-per-line
// blocks and comma-separated inline directives parse the same way.
var keyPattern = regexp.MustCompile(`(?i)\b(RESPONSE_MODE|DOCUMENT_CONTEXTS?|CONTEXT_TYPES|CONTENT_DOMAINS?|DOCUMENT_CATEGORY|DOCUMENT_CATEGORIES|MIN_CONFIDENCE|FALLBACK_STRATEGY)\s*:`)

// Parse extracts a Directive from free-form directive text. It is total:
// malformed fields fall back to their defaults and are logged, never
// surfaced to the caller. When both block markers are present only the
// block is parsed; otherwise the whole text is scanned for recognized keys.
func Parse(text string) Directive {
	d := Default()
	if strings.TrimSpace(text) == "" {
		return d
	}

	body, ok := extractBlock(text)
	if !ok {
		body = text
	}

	matches := keyPattern.FindAllStringSubmatchIndex(body, -1)
	for i, m := range matches {
		key := normalizeKey(body[m[2]:m[3]])
		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		value := strings.Trim(strings.TrimSpace(body[m[1]:end]), ",;")
		if value == "" {
			continue
		}
		applyField(&d, key, strings.TrimSpace(value))
	}

	return d
}

func extractBlock(text string) (string, bool) {
	upper := strings.ToUpper(text)
	start := strings.Index(upper, blockStart)
	if start < 0 {
		return "", false
	}
	rest := start + len(blockStart)
	end := strings.Index(upper[rest:], blockEnd)
	if end < 0 {
		return "", false
	}
	return text[rest : rest+end], true
}

func normalizeKey(key string) string {
	key = strings.ToUpper(strings.TrimSpace(key))
	switch key {
	case "DOCUMENT_CONTEXTS", "CONTEXT_TYPES":
		return "DOCUMENT_CONTEXT"
	case "CONTENT_DOMAINS":
		return "CONTENT_DOMAIN"
	case "DOCUMENT_CATEGORIES":
		return "DOCUMENT_CATEGORY"
	}
	return key
}

func applyField(d *Directive, key, value string) {
	switch key {
	case "RESPONSE_MODE":
		mode := ResponseMode(strings.ToLower(value))
		if !validMode(mode) {
			logger.Warn("Unrecognized response mode, using default",
				zap.String("value", value),
			)
			return
		}
		d.ResponseMode = mode

	case "DOCUMENT_CONTEXT":
		d.DocumentContexts = splitList(value)

	case "CONTENT_DOMAIN":
		d.ContentDomains = splitList(value)

	case "DOCUMENT_CATEGORY":
		d.DocumentCategories = splitList(value)

	case "MIN_CONFIDENCE":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 1 {
			logger.Warn("Invalid min confidence, using default",
				zap.String("value", value),
			)
			return
		}
		d.MinConfidence = f
		d.MinConfidenceSet = true

	case "FALLBACK_STRATEGY":
		fb := FallbackStrategy(strings.ToLower(value))
		if !validFallback(fb) {
			logger.Warn("Unrecognized fallback strategy, using default",
				zap.String("value", value),
			)
			return
		}
		d.FallbackStrategy = fb
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
