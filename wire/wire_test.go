package wire

import (
	"bufio"
	"bytes"
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePacket(&buf, PacketEntityFrame, []byte("payload")); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	id, body, err := ReadPacket(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if id != PacketEntityFrame || string(body) != "payload" {
		t.Fatalf("got id=%v body=%q", id, body)
	}
}

func TestPacketRoundTripEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePacket(&buf, PacketKeepAlive, nil); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	id, body, err := ReadPacket(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if id != PacketKeepAlive || len(body) != 0 {
		t.Fatalf("got id=%v body=%q", id, body)
	}
}

func TestMultiplePacketsInSequence(t *testing.T) {
	var buf bytes.Buffer
	WritePacket(&buf, PacketAckCommands, []byte("a"))
	WritePacket(&buf, PacketRejectCommands, []byte("bb"))

	r := bufio.NewReader(&buf)
	id1, body1, err := ReadPacket(r)
	if err != nil || id1 != PacketAckCommands || string(body1) != "a" {
		t.Fatalf("first packet: id=%v body=%q err=%v", id1, body1, err)
	}
	id2, body2, err := ReadPacket(r)
	if err != nil || id2 != PacketRejectCommands || string(body2) != "bb" {
		t.Fatalf("second packet: id=%v body=%q err=%v", id2, body2, err)
	}
}
