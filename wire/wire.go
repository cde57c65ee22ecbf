// Package wire implements the network transport and packet codec: a
// two-lane session built on RakNet (a reliable-ordered lane for
// commands/acks that must never be reordered or dropped, and a
// best-effort lane for entity frames where a dropped or late update is
// just superseded by the next one) and the length-prefixed packet
// framing shared by both lanes.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// PacketID identifies the payload that follows a packet's length
// prefix. Kept as a single flat byte space across both lanes; a given
// id is only ever sent on one of them (ids.CommandId/EntityFrame ids
// never collide because they belong to disjoint sessions).
type PacketID uint8

const (
	PacketLocalConnectionStart PacketID = iota
	PacketGameBegin
	PacketLevelLoaded
	PacketKeepAlive
	PacketExecutedCommands
	PacketAckCommands
	PacketRejectCommands
	PacketRemoteExecutedCommands
	PacketAckRemoteCommands
	PacketEntityFrame
	PacketPlayerStateFrame
	PacketFrameAck
	PacketFrameResyncRequest
	PacketUpdateStats
	PacketNotification
	PacketMessage
	PacketRequest
	PacketReply
	PacketDisconnect
)

// Lane distinguishes RakNet's reliable-ordered channel from its
// best-effort one, so a Session caller states up front which guarantee
// a given packet needs rather than that being implicit in its id.
type Lane uint8

const (
	// Reliable is delivered exactly once, in order: commands, acks,
	// rejects and remote-executed-command notifications all need this,
	// since losing or reordering one would desync the command clock.
	Reliable Lane = iota
	// BestEffort may be dropped or arrive out of order: entity frames
	// use this lane, since a dropped frame is simply superseded by the
	// next one (see netsnap.PlayerChannel.DropAndResync) rather than
	// needing retransmission.
	BestEffort
)

// Packet is one framed message: an id, the lane it arrived/will be sent
// on, and its raw body (already stripped of the length prefix).
type Packet struct {
	ID   PacketID
	Lane Lane
	Body []byte
}

// WritePacket frames a packet onto w: id (u8), body length (u32 LE),
// body bytes. The lane is not part of the wire encoding — it is a
// property of which RakNet stream the bytes were written to, decided by
// the caller (see Session).
func WritePacket(w io.Writer, id PacketID, body []byte) error {
	if _, err := w.Write([]byte{byte(id)}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(body))); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ReadPacket reads one framed packet from r (without a lane; the caller
// that owns which RakNet stream r came from fills that in).
func ReadPacket(r *bufio.Reader) (PacketID, []byte, error) {
	idByte, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return 0, nil, fmt.Errorf("wire: read packet length: %w", err)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("wire: read packet body: %w", err)
	}
	return PacketID(idByte), body, nil
}
