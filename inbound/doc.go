// Package inbound serves the provider facing webhook surface.
//
// Meta and 360dialog confirm a callback URL with a GET handshake carrying
// hub.mode, hub.verify_token and hub.challenge. The challenge is echoed only
// when the token matches the one stored on the channel addressed by the path.
package inbound
