package retrieval

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/rag-agent/backend/pkg/logger"
)

// webResultScore is assigned to scraped results, which carry no similarity
// signal of their own. Kept below typical vector scores so web hits rank
// behind the knowledge base.
const webResultScore = 0.5

// WebRetriever scrapes a public search engine as a secondary knowledge
// source. Results carry a "web" context type so directives can gate them.
type WebRetriever struct {
	httpClient *http.Client
	maxResults int
}

func NewWebRetriever(maxResults int, timeout time.Duration) *WebRetriever {
	if maxResults <= 0 {
		maxResults = 5
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebRetriever{
		httpClient: &http.Client{Timeout: timeout},
		maxResults: maxResults,
	}
}

func (w *WebRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK > w.maxResults {
		topK = w.maxResults
	}

	searchURL := fmt.Sprintf("https://html.duckduckgo.com/html/?q=%s", url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	docs := make([]Document, 0, topK)
	doc.Find("div.result").Each(func(i int, s *goquery.Selection) {
		if len(docs) >= topK {
			return
		}

		title := strings.TrimSpace(s.Find("a.result__a").Text())
		link, _ := s.Find("a.result__a").Attr("href")
		snippet := strings.TrimSpace(s.Find("a.result__snippet").Text())

		if title == "" || snippet == "" {
			return
		}

		docs = append(docs, Document{
			Content: title + "\n" + snippet,
			Source:  link,
			Score:   webResultScore,
			Context: DocumentContext{
				ContextTypes: []string{"web"},
			},
		})
	})

	logger.Debug("Web search completed",
		zap.String("query", query),
		zap.Int("results", len(docs)),
	)

	return docs, nil
}
