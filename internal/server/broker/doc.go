// Package broker implements the request broker of kraken.
//
// Clients connect over TCP and exchange messages encoded as RESP arrays of
// bulk strings, one frame per element. A request is a sequence of routing
// frames, an empty delimiter frame and a payload frame; the simplest
// client sends ["", payload]. The broker prepends a per-connection
// identity frame and hands the message to the longest-idle worker. The
// worker's reply starts with the captured routing frames, so the broker
// strips the identity and writes the rest back verbatim.
//
// Workers live in-process and talk to the broker through an Endpoint.
// The worker count is the only concurrency limit: while every worker is
// busy the broker stops reading client input and excess load waits in
// transport buffers.
package broker
