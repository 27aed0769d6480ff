// Package tlsroots builds the TLS client configuration used to fetch
// realtime feeds from providers behind a private CA or requiring a client
// certificate.
//
// The trust anchors are the system roots plus an optional PEM bundle. The
// client key pair is reloaded when its files change on disk, so a rotated
// certificate is picked up by the next fetch.
package tlsroots
