// Package payload builds the WhatsApp message bodies shared by the Graph and
// 360dialog strategies and decodes their common response envelopes.
package payload
