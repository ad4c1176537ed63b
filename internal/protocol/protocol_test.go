package protocol

import "testing"

type captureWriter struct {
	name    string
	payload interface{}
}

func (c *captureWriter) Write(name string, payload interface{}) error {
	c.name = name
	c.payload = payload
	return nil
}

func TestSendCommandRoutesSlashCommands(t *testing.T) {
	w := &captureWriter{}

	if err := SendCommand(w, "/order pizza"); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if w.name != PacketCommandRequest {
		t.Errorf("Expected %s, got %s", PacketCommandRequest, w.name)
	}
	pkt, ok := w.payload.(CommandRequestPacket)
	if !ok {
		t.Fatalf("Expected CommandRequestPacket, got %T", w.payload)
	}
	if pkt.Command != "/order pizza" {
		t.Errorf("Expected command '/order pizza', got %q", pkt.Command)
	}
}

func TestSendCommandRoutesChat(t *testing.T) {
	w := &captureWriter{}

	if err := SendCommand(w, "hello everyone"); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if w.name != PacketText {
		t.Errorf("Expected %s, got %s", PacketText, w.name)
	}
	pkt, ok := w.payload.(TextPacket)
	if !ok {
		t.Fatalf("Expected TextPacket, got %T", w.payload)
	}
	if pkt.Message != "hello everyone" {
		t.Errorf("Expected message 'hello everyone', got %q", pkt.Message)
	}
}

func TestIsDecodeNoise(t *testing.T) {
	noise := []string{
		"failed to decode frame 0x42",
		"Unknown packet ID 153",
		"unexpected tag at offset 12",
		"decoder left unread bytes",
	}
	for _, msg := range noise {
		if !IsDecodeNoise(msg) {
			t.Errorf("Expected %q to be decode noise", msg)
		}
	}

	fatal := []string{
		"connection reset by peer",
		"websocket: close 1006 (abnormal closure)",
		"read timeout",
		"",
	}
	for _, msg := range fatal {
		if IsDecodeNoise(msg) {
			t.Errorf("Expected %q to be fatal", msg)
		}
	}
}
