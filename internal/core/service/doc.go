// Package service holds the query-side domain services of kraken.
//
// The Orchestrator turns a journeys request into calls to the routing
// primitive: it repeats the search past the journeys already found until
// the caller's minimum count or timeframe is covered, filters impractical
// results, shortens first and last legs along the same vehicle run, and
// merges in the street-only alternative.
//
// The package also serves the isochrone, places-nearby and metadata
// requests. Services are bound to one snapshot and are not safe for
// concurrent use; each worker owns its own.
package service
