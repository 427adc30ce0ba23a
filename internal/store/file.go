package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"jokebot/pkg/logx"
)

// On-disk documents. The formats are stable and must round-trip losslessly:
//
//	subscribers: {"chat_ids": [sorted integers]}
//	seen-set:    {"ids": [sorted strings]}
type subscribersDoc struct {
	ChatIDs []int64 `json:"chat_ids"`
}

type seenDoc struct {
	IDs []string `json:"ids"`
}

type fileStores struct {
	subs *fileSubscriberStore
	seen map[string]*fileSeenStore
}

func openFile(cfg Config, log logx.Logger) (Stores, error) {
	if strings.TrimSpace(cfg.SubscribersPath) == "" {
		return nil, errors.New("storage.subscribers_path is required for file driver")
	}
	fs := &fileStores{
		subs: &fileSubscriberStore{path: cfg.SubscribersPath, log: log},
		seen: make(map[string]*fileSeenStore, len(cfg.SeenPaths)),
	}
	for cat, path := range cfg.SeenPaths {
		if strings.TrimSpace(path) == "" {
			return nil, errors.New("seen-set path is required for category " + cat)
		}
		fs.seen[cat] = &fileSeenStore{path: path, log: log.With(logx.String("category", cat))}
	}
	return fs, nil
}

func (f *fileStores) Subscribers() SubscriberStore { return f.subs }

func (f *fileStores) Seen(category string) (SeenStore, bool) {
	s, ok := f.seen[category]
	return s, ok
}

func (f *fileStores) Close() error { return nil }

type fileSeenStore struct {
	mu   sync.Mutex
	path string
	log  logx.Logger
}

func (s *fileSeenStore) Load(ctx context.Context) map[string]struct{} {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc seenDoc
	if !readJSONFile(s.path, &doc, s.log) {
		return map[string]struct{}{}
	}
	out := make(map[string]struct{}, len(doc.IDs))
	for _, id := range doc.IDs {
		if id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}

func (s *fileSeenStore) Save(ctx context.Context, ids map[string]struct{}) error {
	_ = ctx
	doc := seenDoc{IDs: make([]string, 0, len(ids))}
	for id := range ids {
		doc.IDs = append(doc.IDs, id)
	}
	sort.Strings(doc.IDs)

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONFile(s.path, doc)
}

type fileSubscriberStore struct {
	mu   sync.Mutex
	path string
	log  logx.Logger
}

func (s *fileSubscriberStore) Load(ctx context.Context) map[int64]struct{} {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc subscribersDoc
	if !readJSONFile(s.path, &doc, s.log) {
		return map[int64]struct{}{}
	}
	out := make(map[int64]struct{}, len(doc.ChatIDs))
	for _, id := range doc.ChatIDs {
		out[id] = struct{}{}
	}
	return out
}

func (s *fileSubscriberStore) Save(ctx context.Context, chats map[int64]struct{}) error {
	_ = ctx
	doc := subscribersDoc{ChatIDs: make([]int64, 0, len(chats))}
	for id := range chats {
		doc.ChatIDs = append(doc.ChatIDs, id)
	}
	sort.Slice(doc.ChatIDs, func(i, j int) bool { return doc.ChatIDs[i] < doc.ChatIDs[j] })

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONFile(s.path, doc)
}

// readJSONFile reports whether it decoded the document. Absence of the file
// is an empty default, not an error; a corrupt document is logged and also
// treated as empty.
func readJSONFile(path string, out any, log logx.Logger) bool {
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("state file unreadable; starting empty", logx.String("path", path), logx.Err(err))
		}
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		log.Warn("state file corrupt; starting empty", logx.String("path", path), logx.Err(err))
		return false
	}
	return true
}

// writeJSONFile replaces the whole document via temp-file-then-rename, which
// is atomic enough for a single low-frequency writer.
func writeJSONFile(path string, doc any) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
