package broadcast

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"jokebot/internal/feed"
	"jokebot/internal/picker"
	"jokebot/internal/store"
	"jokebot/internal/transport"
	"jokebot/pkg/logx"
)

// NoItemsText is the fixed reply when aggregation yields nothing at all.
const NoItemsText = "No items available yet — try again later."

// Category is one content stream delivered per broadcast pass.
type Category struct {
	Name     string
	Feeds    []string
	HomeLink string
	Seen     store.SeenStore
}

// Dispatcher delivers one item per category to each subscriber, and serves
// the same select-and-send path to on-demand commands.
type Dispatcher struct {
	log     logx.Logger
	adapter transport.Adapter
	subs    store.SubscriberStore
	agg     *feed.Aggregator
	pick    *picker.Picker

	// limiter paces every outgoing message (Telegram-wide send budget).
	limiter *rate.Limiter

	mu         sync.RWMutex
	categories []Category

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Options struct {
	// RatePerSec caps outgoing sends. <= 0 disables pacing.
	RatePerSec int

	// Rand is used to randomize subscriber order; nil means time-seeded.
	Rand *rand.Rand
}

func NewDispatcher(adapter transport.Adapter, subs store.SubscriberStore, agg *feed.Aggregator, pick *picker.Picker, opt Options, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	var limiter *rate.Limiter
	if opt.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opt.RatePerSec), opt.RatePerSec)
	}
	rng := opt.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Dispatcher{
		log:     log,
		adapter: adapter,
		subs:    subs,
		agg:     agg,
		pick:    pick,
		limiter: limiter,
		rng:     rng,
	}
}

// SetCategories replaces the delivered category list (startup and config
// reload). Order is delivery order within a pass.
func (d *Dispatcher) SetCategories(cats []Category) {
	d.mu.Lock()
	d.categories = append([]Category(nil), cats...)
	d.mu.Unlock()
}

// Category returns the named category, if configured.
func (d *Dispatcher) Category(name string) (Category, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Deliver aggregates the category's feeds, selects one item and sends it.
// When no items are available at all, the fixed placeholder goes out instead.
func (d *Dispatcher) Deliver(ctx context.Context, cat Category, to transport.ChatTarget) error {
	items := d.agg.Fetch(ctx, cat.Feeds)
	text := NoItemsText
	if it, ok := d.pick.Pick(ctx, items, cat.Seen); ok {
		text = FormatItem(it, cat.HomeLink)
	}
	return d.send(ctx, to, text)
}

// RunPass performs one full broadcast: snapshot the subscriber set, shuffle
// delivery order, then per subscriber send one item per category. A failure
// for one subscriber is logged and never stops the pass. Subscribers added
// mid-pass wait for the next one.
func (d *Dispatcher) RunPass(ctx context.Context) {
	subs := d.subs.Load(ctx)
	if len(subs) == 0 {
		d.log.Debug("broadcast pass skipped; no subscribers")
		return
	}

	list := make([]int64, 0, len(subs))
	for id := range subs {
		list = append(list, id)
	}
	d.rngMu.Lock()
	d.rng.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })
	d.rngMu.Unlock()

	d.mu.RLock()
	cats := append([]Category(nil), d.categories...)
	d.mu.RUnlock()

	start := time.Now()
	var failures int
	for _, chatID := range list {
		to := transport.ChatTarget{ChatID: chatID}
		for _, cat := range cats {
			if err := d.Deliver(ctx, cat, to); err != nil {
				failures++
				d.log.Warn("delivery failed",
					logx.Int64("chat_id", chatID),
					logx.String("category", cat.Name),
					logx.Err(err))
			}
		}
	}
	d.log.Info("broadcast pass done",
		logx.Int("subscribers", len(list)),
		logx.Int("categories", len(cats)),
		logx.Int("failures", failures),
		logx.Duration("took", time.Since(start)))
}

// Send pushes an arbitrary text through the shared rate limiter. Command
// replies use this so they share the pass's send budget.
func (d *Dispatcher) Send(ctx context.Context, to transport.ChatTarget, text string) error {
	return d.send(ctx, to, text)
}

func (d *Dispatcher) send(ctx context.Context, to transport.ChatTarget, text string) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return d.adapter.SendText(ctx, to, text, &transport.SendOptions{DisablePreview: true})
}

// FormatItem renders a delivered item: the text plus its source link (the
// category home link when the entry has none).
func FormatItem(it feed.Item, homeLink string) string {
	link := it.Link
	if link == "" {
		link = homeLink
	}
	if link == "" {
		return it.Text
	}
	return it.Text + "\n\nSource: " + link
}
