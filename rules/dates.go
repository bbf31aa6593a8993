//go:build ruleguard

// Package gorules contains custom linting rules for golangci-lint via
// ruleguard. They guard the idioms this codebase depends on: ledger
// date keys, preview encoding, and goroutine lifecycle helpers.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// LedgerDateKeys keeps every date that touches the attendance ledger in
// the same format. The unique (person_id, date) index only deduplicates
// when all writers agree on the key string.
//
// Problematic patterns:
//
//	date := time.Now().Format("2006-01-02")
//	t.Format("2006-01-02")
//
// Preferred:
//
//	date := datastore.Today()
//	t.Format(time.DateOnly)
func LedgerDateKeys(m dsl.Matcher) {
	m.Match(
		`time.Now().Format("2006-01-02")`,
	).
		Report("use datastore.Today() so ledger date keys stay in one place")

	m.Match(
		`$t.Format("2006-01-02")`,
	).
		Report(`use $t.Format(time.DateOnly) instead of a magic format string`).
		Suggest(`$t.Format(time.DateOnly)`)

	m.Match(
		`time.Parse("2006-01-02", $s)`,
	).
		Report(`use time.Parse(time.DateOnly, $s) instead of a magic format string`).
		Suggest(`time.Parse(time.DateOnly, $s)`)
}
