package picker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"jokebot/internal/feed"
	"jokebot/internal/store"
	"jokebot/pkg/logx"
)

// Picker chooses which aggregated item gets delivered next.
//
// Policy: no duplicate delivery until the category's current feed content is
// exhausted, then graceful repeats instead of silence. The seen-set is
// persisted before the item is handed to any transport, so a failed delivery
// never causes a re-send of the same item.
type Picker struct {
	log logx.Logger

	// rng is shared by command handlers and the scheduler loop; rand.Rand is
	// not safe for concurrent use.
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Picker. rng may be nil; tests pass a seeded source to make
// selection deterministic.
func New(rng *rand.Rand, log logx.Logger) *Picker {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Picker{rng: rng, log: log}
}

// Pick returns one item to deliver, or false when items is empty.
//
// Items are shuffled first to avoid positional bias across runs. The first
// unseen item wins and is marked seen immediately (one synchronous
// persistence write). When everything has been delivered before, a uniformly
// random already-seen item is returned without touching the seen-set.
func (p *Picker) Pick(ctx context.Context, items []feed.Item, seen store.SeenStore) (feed.Item, bool) {
	if len(items) == 0 {
		return feed.Item{}, false
	}

	shuffled := make([]feed.Item, len(items))
	copy(shuffled, items)
	p.mu.Lock()
	p.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	p.mu.Unlock()

	ids := seen.Load(ctx)
	for _, it := range shuffled {
		if _, ok := ids[it.ID]; ok {
			continue
		}
		ids[it.ID] = struct{}{}
		if err := seen.Save(ctx, ids); err != nil {
			// The item still goes out; worst case it repeats after a restart.
			p.log.Warn("seen-set save failed", logx.Err(err))
		}
		return it, true
	}

	// Category exhausted: repeats are expected now.
	p.mu.Lock()
	i := p.rng.Intn(len(shuffled))
	p.mu.Unlock()
	return shuffled[i], true
}
