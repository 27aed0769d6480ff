// Package timetable holds the transit graph served by a snapshot.
//
// Entities live in flat slices and reference each other by index
// (stop points, routes, vehicle journeys, calendars). A Data value is
// built once by a Builder, optionally patched with realtime trip updates
// on a private clone, and is read-only once published.
package timetable
