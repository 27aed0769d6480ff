// Package worker serves journey planner requests handed over by the broker.
//
// A worker answers exactly one reply per message. The reply echoes the
// routing frames of the message, followed by an empty delimiter and the
// JSON encoded domain.Response:
//
//	request: [routing...] "" {"api":"journeys","journeys":{...}}
//	reply:   [routing...] "" {"request_id":"...","publication_date":"...","journeys":[...]}
//
// Every request reads the published snapshot once. The planning workspace
// (planner, street router, orchestrator) is kept across requests and
// rebuilt when the snapshot changes.
package worker
