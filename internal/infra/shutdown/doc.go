// Package shutdown coordinates the graceful stop of the kraken server.
//
// Hooks registered with OnShutdown run in reverse registration order once
// SIGINT or SIGTERM arrives, Trigger is called, or the context given to
// Wait is done. All hooks share one timeout.
package shutdown
