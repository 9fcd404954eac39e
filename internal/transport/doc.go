// Package transport owns the TCP control session with the receiver.
// It writes framed packets one at a time and classifies the response stream
// into acknowledged, rejected, still-in-progress or timed out, and it runs the
// JSON status queries used before a transfer.
package transport
