// Package matcher compares detected face embeddings against a
// candidate set and decides whether the nearest candidate is close
// enough to count as a match.
//
// Distances are Euclidean over the 128-dimensional embeddings. A
// detection matches when the smallest distance is at or below the
// configured tolerance; on equal distances the earliest candidate in
// the set wins. The package also carries the frame scaling helpers
// population sessions use to cut detection cost.
package matcher
