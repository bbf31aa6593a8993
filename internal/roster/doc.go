// Package roster turns enrolled people into matchable candidate sets.
//
// People live in the datastore; their face descriptors live in an
// in-process cache with no expiry. A missing descriptor is derived
// from the enrollment photo on first use and written back to the
// store, so the expensive dlib pass runs once per person. Cache
// entries are evicted only explicitly, on re-enrollment or a bulk
// refresh.
//
// A person whose photo is missing or contains no detectable face is
// logged and left out of every candidate set. The person stays
// visible in people listings; only matching ignores them.
package roster
