package broadcast

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"jokebot/internal/feed"
	"jokebot/internal/picker"
	"jokebot/internal/store"
	"jokebot/internal/transport"
	"jokebot/pkg/logx"
)

// fakeAdapter records sends and can fail for selected chats.
type fakeAdapter struct {
	mu     sync.Mutex
	sent   []sentMsg
	failTo map[int64]bool
}

type sentMsg struct {
	chatID int64
	text   string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                               { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[to.ChatID] {
		return errors.New("chat unavailable")
	}
	f.sent = append(f.sent, sentMsg{chatID: to.ChatID, text: text})
	return nil
}

func (f *fakeAdapter) sends() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sent...)
}

// fakeSubs is an in-memory SubscriberStore.
type fakeSubs struct {
	mu    sync.Mutex
	chats map[int64]struct{}
}

func (f *fakeSubs) Load(ctx context.Context) map[int64]struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]struct{}, len(f.chats))
	for id := range f.chats {
		out[id] = struct{}{}
	}
	return out
}

func (f *fakeSubs) Save(ctx context.Context, chats map[int64]struct{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = chats
	return nil
}

// fakeSeen is an in-memory SeenStore.
type fakeSeen struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func (f *fakeSeen) Load(ctx context.Context) map[string]struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]struct{}, len(f.ids))
	for id := range f.ids {
		out[id] = struct{}{}
	}
	return out
}

func (f *fakeSeen) Save(ctx context.Context, ids map[string]struct{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = ids
	return nil
}

var _ store.SeenStore = (*fakeSeen)(nil)
var _ store.SubscriberStore = (*fakeSubs)(nil)

const rssOneItem = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>t</title>
<item><guid>only</guid><link>http://example.com/only</link><description>the item</description></item>
</channel></rss>`

func newTestDispatcher(t *testing.T, adapter *fakeAdapter, subs *fakeSubs, cats []Category) *Dispatcher {
	t.Helper()
	agg := feed.NewAggregator(&http.Client{Timeout: 2 * time.Second}, "jokebot-test/1.0", logx.Nop())
	pick := picker.New(rand.New(rand.NewSource(1)), logx.Nop())
	d := NewDispatcher(adapter, subs, agg, pick,
		Options{Rand: rand.New(rand.NewSource(1))}, logx.Nop())
	d.SetCategories(cats)
	return d
}

func TestRunPassEmptySubscribersIsNoop(t *testing.T) {
	t.Parallel()
	adapter := &fakeAdapter{}
	subs := &fakeSubs{}
	d := newTestDispatcher(t, adapter, subs, []Category{
		{Name: "joke", Feeds: []string{"http://127.0.0.1:1/feed"}, Seen: &fakeSeen{}},
	})

	d.RunPass(context.Background())
	if got := adapter.sends(); len(got) != 0 {
		t.Fatalf("sends = %v, want zero for empty subscriber set", got)
	}
}

func TestRunPassDeliversPerSubscriberPerCategory(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssOneItem))
	}))
	defer srv.Close()

	adapter := &fakeAdapter{}
	subs := &fakeSubs{chats: map[int64]struct{}{10: {}, 20: {}}}
	d := newTestDispatcher(t, adapter, subs, []Category{
		{Name: "news", Feeds: []string{srv.URL}, Seen: &fakeSeen{}},
		{Name: "joke", Feeds: []string{srv.URL}, Seen: &fakeSeen{}},
	})

	d.RunPass(context.Background())

	got := adapter.sends()
	if len(got) != 4 {
		t.Fatalf("sends = %d, want 2 subscribers x 2 categories", len(got))
	}
	perChat := map[int64]int{}
	for _, s := range got {
		perChat[s.chatID]++
	}
	if perChat[10] != 2 || perChat[20] != 2 {
		t.Fatalf("per-chat sends = %v, want 2 each", perChat)
	}
}

func TestRunPassContinuesPastFailingSubscriber(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssOneItem))
	}))
	defer srv.Close()

	adapter := &fakeAdapter{failTo: map[int64]bool{10: true}}
	subs := &fakeSubs{chats: map[int64]struct{}{10: {}, 20: {}, 30: {}}}
	d := newTestDispatcher(t, adapter, subs, []Category{
		{Name: "joke", Feeds: []string{srv.URL}, Seen: &fakeSeen{}},
	})

	d.RunPass(context.Background())

	got := adapter.sends()
	if len(got) != 2 {
		t.Fatalf("sends = %d, want the two healthy subscribers", len(got))
	}
	for _, s := range got {
		if s.chatID == 10 {
			t.Fatalf("send recorded for failing chat: %v", s)
		}
	}
}

func TestDeliverPlaceholderWhenNoItems(t *testing.T) {
	t.Parallel()
	adapter := &fakeAdapter{}
	d := newTestDispatcher(t, adapter, &fakeSubs{}, nil)

	cat := Category{Name: "joke", Feeds: []string{"http://127.0.0.1:1/feed"}, Seen: &fakeSeen{}}
	if err := d.Deliver(context.Background(), cat, transport.ChatTarget{ChatID: 7}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	got := adapter.sends()
	if len(got) != 1 || got[0].text != NoItemsText {
		t.Fatalf("sends = %v, want the fixed placeholder", got)
	}
}

func TestFormatItem(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		item     feed.Item
		homeLink string
		want     string
	}{
		{
			name: "entry link",
			item: feed.Item{Text: "ha", Link: "http://example.com/1"},
			want: "ha\n\nSource: http://example.com/1",
		},
		{
			name:     "falls back to home link",
			item:     feed.Item{Text: "ha"},
			homeLink: "http://example.com",
			want:     "ha\n\nSource: http://example.com",
		},
		{
			name: "no links at all",
			item: feed.Item{Text: "ha"},
			want: "ha",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatItem(tt.item, tt.homeLink); got != tt.want {
				t.Fatalf("FormatItem = %q, want %q", got, tt.want)
			}
		})
	}
}
