// Package store persists the two kinds of bot state:
//
//   - the subscriber set (chat ids that opted in to the hourly broadcast)
//   - one seen-set per content category (ids of already delivered items)
//
// Both are tiny, single-writer, low-frequency documents. The default "file"
// driver keeps them as stable JSON files; the optional "sqlite" driver
// (build tag: sqlite) puts them in one database file instead.
package store
