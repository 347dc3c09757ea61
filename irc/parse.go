// Package irc implements the subset of the IRC-over-websocket wire format
// spoken by the Twitch chat servers: handshake lines, outgoing PRIVMSG
// construction and parsing of the two incoming chat-line shapes.
package irc

import (
	"strings"

	"github.com/samber/lo"

	"ttv-chat/domain"
)

const (
	// PrivmsgMarker is present on every chat line, tagged or not.
	PrivmsgMarker = "PRIVMSG"

	// TagsAckMarker acknowledges the tags capability request. Once seen,
	// chat lines carry a metadata block.
	TagsAckMarker = "ACK :twitch.tv/tags"

	// DedupeMarker is an invisible suffix toggled on repeated outgoing
	// lines to defeat server-side duplicate suppression.
	DedupeMarker = " \U000E0000"

	terminator = "\r\n"
)

// ParseUserMessage extracts a chat message from the untagged shape
// ":<author>!<rest> PRIVMSG #<channel> :<text>". It reports false for
// any line that is not a renderable user chat line.
func ParseUserMessage(line string) (domain.Message, bool) {
	line, _, _ = strings.Cut(line, terminator)

	prefix, _, found := strings.Cut(line, "!")
	if !found || len(prefix) < 1 {
		return domain.Message{}, false
	}
	author := prefix[1:]

	// At most three segments: text may legitimately contain ':'.
	parts := strings.SplitN(line, ":", 3)
	content := parts[len(parts)-1]

	return domain.Message{Author: author, Content: content}, true
}

// ParseTaggedMessage extracts a chat message from the tagged shape
// "<key=value;...> :<author-info> :<text>". The display-name tag is
// required; without it the line is not renderable and false is reported.
func ParseTaggedMessage(line string) (domain.Message, bool) {
	line, _, _ = strings.Cut(line, terminator)

	rawTags, tail, found := strings.Cut(line, " :")
	if !found {
		return domain.Message{}, false
	}
	_, content, found := strings.Cut(tail, " :")
	if !found {
		return domain.Message{}, false
	}

	tags := parseTags(rawTags)
	author, ok := tags["display-name"]
	if !ok {
		return domain.Message{}, false
	}

	var color *string
	if c, ok := tags["color"]; ok {
		color = lo.ToPtr(c)
	}

	return domain.Message{Author: author, Color: color, Content: content}, true
}

// parseTags splits a ";"-separated key=value block. Pairs without "=" are
// skipped, duplicate keys keep the last value.
func parseTags(raw string) map[string]string {
	tags := make(map[string]string)
	for _, pair := range strings.Split(raw, ";") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		tags[key] = value
	}
	return tags
}
