// Package client is a kraken request broker client.
//
// A Client owns one TCP connection and sends one request at a time as the
// two frame message ["", payload]. Replies carry a domain.Response; an
// error reported by kraken is returned as *ResponseError.
//
//	c, err := client.Dial(ctx, "127.0.0.1:5555")
//	resp, err := c.Journeys(ctx, &domain.JourneysRequest{...})
package client
