// Package session drives recognition over the shared frame stream.
//
// A Session polls the camera hub on its own ticker, detects faces,
// matches them against its candidate set, and feeds the results
// through a per-identity confirmation tracker. An identity that stays
// matched across enough frames is committed to the attendance ledger
// exactly once per day; the ledger's uniqueness constraint resolves
// races between concurrent sessions seeing the same person.
//
// Three modes share the loop: verify checks one expected identity at
// full resolution and stops once it commits, open matches the whole
// roster continuously, and group matches one group tag's roster with
// atomic retargeting via SwitchGroup. Candidate loads run in the
// background and land as a single immutable state swap, so a frame in
// flight never mixes old counters with new candidates.
package session
