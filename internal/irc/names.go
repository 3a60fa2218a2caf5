package irc

import "strings"

// nameSpace stands in for spaces in nicknames and room names on the wire.
const nameSpace = "\u00a0"

// EncodeName makes a display name usable as a single IRC parameter.
func EncodeName(name string) string {
	return strings.ReplaceAll(name, " ", nameSpace)
}

// DecodeName reverses EncodeName. A name that already contained nameSpace
// comes back with a plain space there; the backend never sends one, so the
// mapping is treated as lossless.
func DecodeName(name string) string {
	return strings.ReplaceAll(name, nameSpace, " ")
}

// channelName renders a room name as an IRC channel.
func channelName(room string) string {
	return "#" + EncodeName(room)
}

// roomName extracts the room name from a channel parameter.
func roomName(channel string) string {
	return DecodeName(strings.TrimPrefix(channel, "#"))
}

func isChannel(target string) bool {
	return strings.HasPrefix(target, "#")
}
