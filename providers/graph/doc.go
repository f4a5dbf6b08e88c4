// Package graph implements the WhatsApp Cloud and embedded signup strategies
// over the Meta Graph API.
package graph
