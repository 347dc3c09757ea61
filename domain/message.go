// Package domain contains core concepts of the chat client.
// Messages are immutable values produced by the wire parser.
package domain

// Message represents one rendered chat line received from the server.
type Message struct {
	Author  string
	Color   *string // hex color advertised by the sender, nil when absent
	Content string
}
