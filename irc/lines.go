package irc

import "fmt"

// Handshake and outgoing line constructors. Each result is sent as its
// own websocket text frame, so no terminator is appended.

func PassLine(token string) string {
	return "PASS oauth:" + token
}

func NickLine(nick string) string {
	return "NICK " + nick
}

func JoinLine(channel string) string {
	return "JOIN #" + channel
}

// CapReqLine asks the server to include per-message metadata tags.
func CapReqLine() string {
	return "CAP REQ :twitch.tv/tags"
}

func PrivmsgLine(channel, text string) string {
	return fmt.Sprintf("PRIVMSG #%s :%s", channel, text)
}
