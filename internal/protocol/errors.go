package protocol

import "strings"

// decodeNoiseMarkers identify transport error messages produced by the
// decode layer for packets the client does not model. These are
// harmless: the session is still alive, the frame was just unknown.
var decodeNoiseMarkers = []string{
	"failed to decode frame",
	"unknown packet",
	"unexpected tag",
	"unread bytes",
}

// IsDecodeNoise classifies a transport error message. Noise must not
// be treated as a disconnect; it is applied once, at the event ingress,
// instead of patching the transport's internals.
func IsDecodeNoise(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range decodeNoiseMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
