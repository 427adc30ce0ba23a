package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/mmcdole/gofeed"

	"jokebot/pkg/logx"
)

// Item is one normalized feed entry. It lives only within a single
// aggregation pass; nothing persists it.
type Item struct {
	ID   string
	Text string
	Link string
}

// Aggregator fetches feed sources over a shared HTTP client and flattens
// them into items. One source failing never affects the others.
type Aggregator struct {
	httpc     *http.Client
	userAgent string
	log       logx.Logger
}

func NewAggregator(httpc *http.Client, userAgent string, log logx.Logger) *Aggregator {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Aggregator{httpc: httpc, userAgent: userAgent, log: log}
}

// Fetch scatter/gathers all sources concurrently and returns the
// concatenation of every successfully parsed source, in no guaranteed order.
// It waits for every source; per-source latency is bounded by the HTTP
// client's timeout.
func (a *Aggregator) Fetch(ctx context.Context, urls []string) []Item {
	buckets := make([][]Item, len(urls))
	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			items, err := a.fetchOne(ctx, url)
			if err != nil {
				a.log.Warn("feed fetch failed", logx.String("url", url), logx.Err(err))
				return
			}
			buckets[i] = items
		}(i, url)
	}
	wg.Wait()

	var out []Item
	for _, b := range buckets {
		out = append(out, b...)
	}
	return out
}

func (a *Aggregator) fetchOne(ctx context.Context, url string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)

	res, err := a.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("want 200, got %d", res.StatusCode)
	}

	// gofeed.Parser keeps per-parse state; use a fresh one per fetch since
	// fetches run concurrently.
	parsed, err := gofeed.NewParser().Parse(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, e := range parsed.Items {
		text := entryText(e)
		if text == "" {
			continue
		}
		items = append(items, Item{
			ID:   entryID(e),
			Text: text,
			Link: e.Link,
		})
	}
	return items, nil
}

// entryID derives a stable id: the entry's native identifier when present,
// otherwise a composite of link and title.
func entryID(e *gofeed.Item) string {
	if e.GUID != "" {
		return e.GUID
	}
	return e.Link + "::" + e.Title
}

// entryText picks the first usable text content: summary/description, then
// full content, then title.
func entryText(e *gofeed.Item) string {
	for _, s := range []string{e.Description, e.Content, e.Title} {
		if t := strings.TrimSpace(s); t != "" {
			return t
		}
	}
	return ""
}
