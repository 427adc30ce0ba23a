package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"jokebot/pkg/logx"
)

func openTestStores(t *testing.T) (Stores, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(Config{
		SubscribersPath: filepath.Join(dir, "subscribers.json"),
		SeenPaths: map[string]string{
			"joke": filepath.Join(dir, "seen_jokes.json"),
			"news": filepath.Join(dir, "seen_news.json"),
		},
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func TestLoadMissingFilesIsEmpty(t *testing.T) {
	t.Parallel()
	s, _ := openTestStores(t)
	ctx := context.Background()

	if got := s.Subscribers().Load(ctx); len(got) != 0 {
		t.Fatalf("subscribers from missing file = %v, want empty", got)
	}
	seen, ok := s.Seen("joke")
	if !ok {
		t.Fatal("joke seen store missing")
	}
	if got := seen.Load(ctx); len(got) != 0 {
		t.Fatalf("seen set from missing file = %v, want empty", got)
	}
}

func TestLoadCorruptFileIsEmpty(t *testing.T) {
	t.Parallel()
	s, dir := openTestStores(t)
	ctx := context.Background()

	for _, name := range []string{"subscribers.json", "seen_jokes.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{not json"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.Subscribers().Load(ctx); len(got) != 0 {
		t.Fatalf("subscribers from corrupt file = %v, want empty", got)
	}
	seen, _ := s.Seen("joke")
	if got := seen.Load(ctx); len(got) != 0 {
		t.Fatalf("seen set from corrupt file = %v, want empty", got)
	}
}

func TestSubscriberRoundTrip(t *testing.T) {
	t.Parallel()
	s, dir := openTestStores(t)
	ctx := context.Background()

	want := map[int64]struct{}{1: {}, 2: {}, 3: {}}
	if err := s.Subscribers().Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The on-disk document format is stable: sorted chat ids under "chat_ids".
	b, err := os.ReadFile(filepath.Join(dir, "subscribers.json"))
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		ChatIDs []int64 `json:"chat_ids"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("document not valid JSON: %v", err)
	}
	if diff := cmp.Diff([]int64{1, 2, 3}, doc.ChatIDs); diff != "" {
		t.Fatalf("chat_ids mismatch (-want +got):\n%s", diff)
	}

	got := s.Subscribers().Load(ctx)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSeenSetRoundTrip(t *testing.T) {
	t.Parallel()
	s, dir := openTestStores(t)
	ctx := context.Background()

	seen, _ := s.Seen("news")
	want := map[string]struct{}{"b": {}, "a": {}, "c": {}}
	if err := seen.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "seen_news.json"))
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("document not valid JSON: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, doc.IDs); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}

	got := seen.Load(ctx)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

// save(load(x)) must reproduce x byte-for-byte for any valid document.
func TestSaveLoadIdempotent(t *testing.T) {
	t.Parallel()
	s, dir := openTestStores(t)
	ctx := context.Background()

	seen, _ := s.Seen("joke")
	if err := seen.Save(ctx, map[string]struct{}{"x": {}, "y": {}}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "seen_jokes.json")
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := seen.Save(ctx, seen.Load(ctx)); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Fatalf("save(load(x)) changed the document:\nfirst:  %s\nsecond: %s", first, second)
	}
}

func TestSeenUnknownCategory(t *testing.T) {
	t.Parallel()
	s, _ := openTestStores(t)
	if _, ok := s.Seen("weather"); ok {
		t.Fatal("unknown category should not have a store")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
