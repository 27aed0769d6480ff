// Package domain defines the core domain models for kraken.
//
// Domain models are plain values without IO dependencies:
//
//   - Request / Response: the payloads carried by the broker protocol
//   - Journey / Section: search results produced by the planner
//   - Deadline: optional absolute instant bounding a request
//   - Errors: the closed error taxonomy shared by every layer
package domain
