// Package snapshot owns the immutable, versioned data sets served to the
// workers.
//
// A Snapshot bundles the timetable with every index derived from it. The
// Manager publishes snapshots with a single atomic swap, so a reader that
// called Get holds either the previous or the next snapshot, never one
// under construction:
//
//  1. build the base timetable from the extract
//  2. merge realtime trip updates, if a source is configured
//  3. build the routing and proximity indices
//  4. publish
//
// A failed build leaves the current snapshot in place.
package snapshot
