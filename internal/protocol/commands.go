package protocol

import "strings"

// Writer is the outbound half of the client, narrowed for components
// that only send packets.
type Writer interface {
	Write(name string, payload interface{}) error
}

// SendCommand turns a line of input into the appropriate server-bound
// packet: slash-prefixed lines become command requests, everything
// else is sent as chat.
func SendCommand(w Writer, line string) error {
	if strings.HasPrefix(line, "/") {
		return w.Write(PacketCommandRequest, CommandRequestPacket{Command: line})
	}
	return w.Write(PacketText, TextPacket{Message: line})
}
