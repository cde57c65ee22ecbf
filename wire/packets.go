package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/thinkofname/univercity-core/command"
	"github.com/thinkofname/univercity-core/ids"
)

// LocalConnectionStart is the client's first message on a local socket
// (spec §6). SteamID is 0 when the client has no Steam identity to
// offer.
type LocalConnectionStart struct {
	Name    string
	SteamID uint64
}

func (p LocalConnectionStart) Marshal() []byte {
	var buf []byte
	buf = appendString(buf, p.Name)
	buf = appendUint64(buf, p.SteamID)
	return buf
}

func UnmarshalLocalConnectionStart(data []byte) (LocalConnectionStart, error) {
	r := newReader(data)
	name, err := r.string()
	if err != nil {
		return LocalConnectionStart{}, fmt.Errorf("wire: read name: %w", err)
	}
	steamID, err := r.uint64()
	if err != nil {
		return LocalConnectionStart{}, fmt.Errorf("wire: read steam id: %w", err)
	}
	return LocalConnectionStart{Name: name, SteamID: steamID}, nil
}

// GameBegin is sent once, server to client, after auth succeeds (spec
// §6). State and IdleState are opaque encoded blobs (the full initial
// world/idle-choice snapshot); this package only frames them, it never
// interprets their contents.
type GameBegin struct {
	UID            uuid.UUID
	Width, Height  int32
	Players        []ids.PlayerId
	MissionHandler ids.ResourceKey
	Strings        []string
	State          []byte
	IdleState      []byte
}

func (p GameBegin) Marshal() []byte {
	var buf []byte
	buf = append(buf, p.UID[:]...)
	buf = appendUint32(buf, uint32(p.Width))
	buf = appendUint32(buf, uint32(p.Height))
	buf = appendUint16(buf, uint16(len(p.Players)))
	for _, pl := range p.Players {
		buf = appendUint16(buf, uint16(pl))
	}
	buf = appendResourceKey(buf, p.MissionHandler)
	buf = appendUint16(buf, uint16(len(p.Strings)))
	for _, s := range p.Strings {
		buf = appendString(buf, s)
	}
	buf = appendUint32(buf, uint32(len(p.State)))
	buf = append(buf, p.State...)
	buf = appendUint32(buf, uint32(len(p.IdleState)))
	buf = append(buf, p.IdleState...)
	return buf
}

func UnmarshalGameBegin(data []byte) (GameBegin, error) {
	r := newReader(data)
	uidBytes, err := r.bytes(16)
	if err != nil {
		return GameBegin{}, fmt.Errorf("wire: read session uid: %w", err)
	}
	var p GameBegin
	copy(p.UID[:], uidBytes)

	width, err := r.uint32()
	if err != nil {
		return GameBegin{}, fmt.Errorf("wire: read width: %w", err)
	}
	height, err := r.uint32()
	if err != nil {
		return GameBegin{}, fmt.Errorf("wire: read height: %w", err)
	}
	p.Width, p.Height = int32(width), int32(height)

	playerCount, err := r.uint16()
	if err != nil {
		return GameBegin{}, fmt.Errorf("wire: read player count: %w", err)
	}
	for i := uint16(0); i < playerCount; i++ {
		pl, err := r.uint16()
		if err != nil {
			return GameBegin{}, fmt.Errorf("wire: read player id: %w", err)
		}
		p.Players = append(p.Players, ids.PlayerId(pl))
	}

	p.MissionHandler, err = r.resourceKey()
	if err != nil {
		return GameBegin{}, fmt.Errorf("wire: read mission handler: %w", err)
	}

	stringCount, err := r.uint16()
	if err != nil {
		return GameBegin{}, fmt.Errorf("wire: read string count: %w", err)
	}
	for i := uint16(0); i < stringCount; i++ {
		s, err := r.string()
		if err != nil {
			return GameBegin{}, fmt.Errorf("wire: read string: %w", err)
		}
		p.Strings = append(p.Strings, s)
	}

	stateLen, err := r.uint32()
	if err != nil {
		return GameBegin{}, fmt.Errorf("wire: read state length: %w", err)
	}
	if p.State, err = r.bytes(int(stateLen)); err != nil {
		return GameBegin{}, fmt.Errorf("wire: read state: %w", err)
	}

	idleLen, err := r.uint32()
	if err != nil {
		return GameBegin{}, fmt.Errorf("wire: read idle state length: %w", err)
	}
	if p.IdleState, err = r.bytes(int(idleLen)); err != nil {
		return GameBegin{}, fmt.Errorf("wire: read idle state: %w", err)
	}
	return p, nil
}

// AckCommands is the server's acknowledgement of a player's validated
// command prefix (spec §4.7/§6): the client drops its history up to
// AcceptedID.
type AckCommands struct{ AcceptedID ids.CommandId }

func (p AckCommands) Marshal() []byte { return appendUint32(nil, uint32(p.AcceptedID)) }

func UnmarshalAckCommands(data []byte) (AckCommands, error) {
	r := newReader(data)
	id, err := r.uint32()
	if err != nil {
		return AckCommands{}, fmt.Errorf("wire: read accepted id: %w", err)
	}
	return AckCommands{AcceptedID: ids.CommandId(id)}, nil
}

// RejectCommands tells the client to undo back to AcceptedID and resume
// its id clock at RejectedID (spec §4.7).
type RejectCommands struct{ AcceptedID, RejectedID ids.CommandId }

func (p RejectCommands) Marshal() []byte {
	var buf []byte
	buf = appendUint32(buf, uint32(p.AcceptedID))
	buf = appendUint32(buf, uint32(p.RejectedID))
	return buf
}

func UnmarshalRejectCommands(data []byte) (RejectCommands, error) {
	r := newReader(data)
	accepted, err := r.uint32()
	if err != nil {
		return RejectCommands{}, fmt.Errorf("wire: read accepted id: %w", err)
	}
	rejected, err := r.uint32()
	if err != nil {
		return RejectCommands{}, fmt.Errorf("wire: read rejected id: %w", err)
	}
	return RejectCommands{AcceptedID: ids.CommandId(accepted), RejectedID: ids.CommandId(rejected)}, nil
}

// ExecutedCommands is a client's batch of locally-executed commands,
// starting at StartID (spec §6). A command that fails to marshal (an
// unrecognized local type) makes Marshal return that error for the whole
// batch.
type ExecutedCommands struct {
	StartID  ids.CommandId
	Commands []command.Command
}

func (p ExecutedCommands) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendUint32(buf, uint32(p.StartID))
	buf = appendUint16(buf, uint16(len(p.Commands)))
	for _, c := range p.Commands {
		encoded, err := command.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("wire: marshal executed commands: %w", err)
		}
		buf = appendUint16(buf, uint16(len(encoded)))
		buf = append(buf, encoded...)
	}
	return buf, nil
}

func UnmarshalExecutedCommands(data []byte) (ExecutedCommands, error) {
	r := newReader(data)
	start, err := r.uint32()
	if err != nil {
		return ExecutedCommands{}, fmt.Errorf("wire: read start id: %w", err)
	}
	count, err := r.uint16()
	if err != nil {
		return ExecutedCommands{}, fmt.Errorf("wire: read command count: %w", err)
	}
	p := ExecutedCommands{StartID: ids.CommandId(start)}
	for i := uint16(0); i < count; i++ {
		length, err := r.uint16()
		if err != nil {
			return ExecutedCommands{}, fmt.Errorf("wire: read command length: %w", err)
		}
		body, err := r.bytes(int(length))
		if err != nil {
			return ExecutedCommands{}, fmt.Errorf("wire: read command body: %w", err)
		}
		cmd, err := command.Unmarshal(body)
		if err != nil {
			return ExecutedCommands{}, fmt.Errorf("wire: decode command %d: %w", i, err)
		}
		p.Commands = append(p.Commands, cmd)
	}
	return p, nil
}

// RemoteCommand pairs a command with the player who submitted it, the
// entry shape RemoteExecutedCommands broadcasts (spec §6: "each entry is
// (PlayerId, Command)"). Player id 0 (ids.Server) is the server's own
// synthetic principal.
type RemoteCommand struct {
	Player ids.PlayerId
	Cmd    command.Command
}

// RemoteExecutedCommands is the server's broadcast of a globally
// ordered batch of commands, starting at StartID.
type RemoteExecutedCommands struct {
	StartID ids.CommandId
	Entries []RemoteCommand
}

func (p RemoteExecutedCommands) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendUint32(buf, uint32(p.StartID))
	buf = appendUint16(buf, uint16(len(p.Entries)))
	for _, e := range p.Entries {
		buf = appendUint16(buf, uint16(e.Player))
		encoded, err := command.Marshal(e.Cmd)
		if err != nil {
			return nil, fmt.Errorf("wire: marshal remote executed commands: %w", err)
		}
		buf = appendUint16(buf, uint16(len(encoded)))
		buf = append(buf, encoded...)
	}
	return buf, nil
}

func UnmarshalRemoteExecutedCommands(data []byte) (RemoteExecutedCommands, error) {
	r := newReader(data)
	start, err := r.uint32()
	if err != nil {
		return RemoteExecutedCommands{}, fmt.Errorf("wire: read start id: %w", err)
	}
	count, err := r.uint16()
	if err != nil {
		return RemoteExecutedCommands{}, fmt.Errorf("wire: read entry count: %w", err)
	}
	p := RemoteExecutedCommands{StartID: ids.CommandId(start)}
	for i := uint16(0); i < count; i++ {
		player, err := r.uint16()
		if err != nil {
			return RemoteExecutedCommands{}, fmt.Errorf("wire: read entry player: %w", err)
		}
		length, err := r.uint16()
		if err != nil {
			return RemoteExecutedCommands{}, fmt.Errorf("wire: read entry length: %w", err)
		}
		body, err := r.bytes(int(length))
		if err != nil {
			return RemoteExecutedCommands{}, fmt.Errorf("wire: read entry body: %w", err)
		}
		cmd, err := command.Unmarshal(body)
		if err != nil {
			return RemoteExecutedCommands{}, fmt.Errorf("wire: decode entry %d: %w", i, err)
		}
		p.Entries = append(p.Entries, RemoteCommand{Player: ids.PlayerId(player), Cmd: cmd})
	}
	return p, nil
}

// AckRemoteCommands is the client's acknowledgement of a
// RemoteExecutedCommands batch. The server keeps no replay state and
// takes no action on it.
type AckRemoteCommands struct{ AcceptedID ids.CommandId }

func (p AckRemoteCommands) Marshal() []byte { return appendUint32(nil, uint32(p.AcceptedID)) }

func UnmarshalAckRemoteCommands(data []byte) (AckRemoteCommands, error) {
	r := newReader(data)
	id, err := r.uint32()
	if err != nil {
		return AckRemoteCommands{}, fmt.Errorf("wire: read accepted id: %w", err)
	}
	return AckRemoteCommands{AcceptedID: ids.CommandId(id)}, nil
}

// UpdateStats carries a player's own delta-encoded ledger state (spec
// §6); History is netsnap's PlayerStateFrame encoding. UpdateID lets the
// client drop a frame that arrived after a newer one already applied.
type UpdateStats struct {
	UpdateID uint32
	History  []byte
}

func (p UpdateStats) Marshal() []byte {
	var buf []byte
	buf = appendUint32(buf, p.UpdateID)
	buf = appendUint32(buf, uint32(len(p.History)))
	buf = append(buf, p.History...)
	return buf
}

func UnmarshalUpdateStats(data []byte) (UpdateStats, error) {
	r := newReader(data)
	updateID, err := r.uint32()
	if err != nil {
		return UpdateStats{}, fmt.Errorf("wire: read update id: %w", err)
	}
	length, err := r.uint32()
	if err != nil {
		return UpdateStats{}, fmt.Errorf("wire: read history length: %w", err)
	}
	history, err := r.bytes(int(length))
	if err != nil {
		return UpdateStats{}, fmt.Errorf("wire: read history: %w", err)
	}
	return UpdateStats{UpdateID: updateID, History: history}, nil
}

// Notification is a server -> client batch of one-line UI notifications
// (spec §6).
type Notification struct{ Notifications []string }

func (p Notification) Marshal() []byte { return appendStringSlice(nil, p.Notifications) }

func UnmarshalNotification(data []byte) (Notification, error) {
	strs, err := readStringSlice(newReader(data))
	if err != nil {
		return Notification{}, fmt.Errorf("wire: read notifications: %w", err)
	}
	return Notification{Notifications: strs}, nil
}

// Message is a chat fan-out batch (spec §6).
type Message struct{ Messages []string }

func (p Message) Marshal() []byte { return appendStringSlice(nil, p.Messages) }

func UnmarshalMessage(data []byte) (Message, error) {
	strs, err := readStringSlice(newReader(data))
	if err != nil {
		return Message{}, fmt.Errorf("wire: read messages: %w", err)
	}
	return Message{Messages: strs}, nil
}

// Request is an opaque request/response pair used by UI features (spec
// §6): Kind names which feature handles it, Payload is that feature's
// own encoding.
type Request struct {
	ID      uint32
	Kind    string
	Payload []byte
}

func (p Request) Marshal() []byte {
	var buf []byte
	buf = appendUint32(buf, p.ID)
	buf = appendString(buf, p.Kind)
	buf = appendUint32(buf, uint32(len(p.Payload)))
	buf = append(buf, p.Payload...)
	return buf
}

func UnmarshalRequest(data []byte) (Request, error) {
	r := newReader(data)
	id, err := r.uint32()
	if err != nil {
		return Request{}, fmt.Errorf("wire: read request id: %w", err)
	}
	kind, err := r.string()
	if err != nil {
		return Request{}, fmt.Errorf("wire: read request kind: %w", err)
	}
	length, err := r.uint32()
	if err != nil {
		return Request{}, fmt.Errorf("wire: read request payload length: %w", err)
	}
	payload, err := r.bytes(int(length))
	if err != nil {
		return Request{}, fmt.Errorf("wire: read request payload: %w", err)
	}
	return Request{ID: id, Kind: kind, Payload: payload}, nil
}

// Reply answers a Request carrying the same ID.
type Reply struct {
	ID      uint32
	Payload []byte
}

func (p Reply) Marshal() []byte {
	var buf []byte
	buf = appendUint32(buf, p.ID)
	buf = appendUint32(buf, uint32(len(p.Payload)))
	buf = append(buf, p.Payload...)
	return buf
}

func UnmarshalReply(data []byte) (Reply, error) {
	r := newReader(data)
	id, err := r.uint32()
	if err != nil {
		return Reply{}, fmt.Errorf("wire: read reply id: %w", err)
	}
	length, err := r.uint32()
	if err != nil {
		return Reply{}, fmt.Errorf("wire: read reply payload length: %w", err)
	}
	payload, err := r.bytes(int(length))
	if err != nil {
		return Reply{}, fmt.Errorf("wire: read reply payload: %w", err)
	}
	return Reply{ID: id, Payload: payload}, nil
}

func appendUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func appendStringSlice(buf []byte, strs []string) []byte {
	buf = appendUint16(buf, uint16(len(strs)))
	for _, s := range strs {
		buf = appendString(buf, s)
	}
	return buf
}

func readStringSlice(r *reader) ([]string, error) {
	count, err := r.uint16()
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	var out []string
	for i := uint16(0); i < count; i++ {
		s, err := r.string()
		if err != nil {
			return nil, fmt.Errorf("read entry %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func appendResourceKey(buf []byte, k ids.ResourceKey) []byte {
	buf = appendString(buf, string(k.Module))
	buf = appendString(buf, k.Path)
	return buf
}

// reader is a minimal little-endian cursor over a packet body, used by
// the payload decoders above so a truncated packet fails with a plain
// io.ErrUnexpectedEOF instead of a partial binary.Read.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) string() (string, error) {
	length, err := r.uint16()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(length))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) resourceKey() (ids.ResourceKey, error) {
	module, err := r.string()
	if err != nil {
		return ids.ResourceKey{}, err
	}
	path, err := r.string()
	if err != nil {
		return ids.ResourceKey{}, err
	}
	return ids.New(ids.ModuleKey(module), path), nil
}
