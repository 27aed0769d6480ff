// Package storage groups the data layer of kraken.
//
//   - gtfs: loads a base extract into timetable data
//   - realtime: fetches and decodes GTFS-realtime trip updates
//   - snapshot: builds, publishes and swaps the immutable snapshots read
//     by the workers
package storage
