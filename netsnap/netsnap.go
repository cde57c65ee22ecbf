// Package netsnap implements the server-to-client entity replication
// channel: per-player delta-encoded frames, each describing only the
// entities that changed since the client's last acknowledged baseline,
// with a hash-based change test so an untouched entity never costs
// bandwidth even if a system merely re-read it this tick.
package netsnap

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/brentp/intintmap"
	"github.com/cespare/xxhash/v2"

	"github.com/thinkofname/univercity-core/ids"
)

// EntityState is the replicated subset of an entity's components, the
// payload a snapshot actually carries. Built fresh each tick from the
// ECS store by the caller; netsnap itself is
// agnostic to what's inside beyond needing it comparable via Hash.
type EntityState struct {
	Network ids.NetworkId
	Payload []byte // pre-encoded component data, opaque to this package
}

// Hash returns a content hash of the state, used to detect whether it
// changed since the last frame without keeping the full previous
// payload around for a byte-compare.
func (s EntityState) Hash() uint64 {
	h := xxhash.New()
	var buf [4]byte
	buf[0] = byte(s.Network)
	buf[1] = byte(s.Network >> 8)
	buf[2] = byte(s.Network >> 16)
	buf[3] = byte(s.Network >> 24)
	h.Write(buf[:])
	h.Write(s.Payload)
	return h.Sum64()
}

// FrameID is the monotonically increasing identifier of a snapshot
// frame sent to one player.
type FrameID uint32

// EntityFrame is one tick's worth of replication data for a single
// player: only the entities whose hash changed since that player's
// acknowledged baseline, plus the set of network ids that disappeared
// (destroyed, or moved out of the player's interest set) since then.
type EntityFrame struct {
	ID      FrameID
	Base    FrameID // the baseline this frame is a delta against
	Changed []EntityState
	Removed []ids.NetworkId
}

// entityIndex is the per-player NetworkId -> last-sent-hash map a
// PlayerChannel keeps so it can tell whether an entity changed since the
// last frame it actually built (not necessarily the last the client
// acknowledged; see baseline below).
type entityIndex struct {
	ids    *intintmap.Map
	hashes map[ids.NetworkId]uint64
}

func newEntityIndex() *entityIndex {
	return &entityIndex{ids: intintmap.New(256, 0.6), hashes: make(map[ids.NetworkId]uint64)}
}

// PlayerChannel tracks one player's replication state: the last frame it
// built, the baseline the client has acknowledged, and the per-entity
// hashes needed to build the next delta.
type PlayerChannel struct {
	index    *entityIndex
	nextID   FrameID
	baseline FrameID
	pending  map[FrameID]EntityFrame
}

// NewPlayerChannel returns a channel with baseline 0 (meaning: the
// client has nothing yet, so its first frame must describe every
// currently-visible entity in full).
func NewPlayerChannel() *PlayerChannel {
	return &PlayerChannel{index: newEntityIndex(), pending: make(map[FrameID]EntityFrame)}
}

// BuildFrame produces the next EntityFrame for this channel from the
// current visible entity set, by diffing against the last hash recorded
// for each network id. visible is the full current state of every
// entity in the player's interest set this tick; entities previously
// known but absent from visible are reported as Removed.
func (c *PlayerChannel) BuildFrame(visible []EntityState) EntityFrame {
	frame := EntityFrame{ID: c.nextID, Base: c.baseline}
	c.nextID++

	seen := make(map[ids.NetworkId]bool, len(visible))
	for _, s := range visible {
		seen[s.Network] = true
		h := s.Hash()
		if prev, ok := c.index.hashes[s.Network]; ok && prev == h {
			continue
		}
		c.index.hashes[s.Network] = h
		c.index.ids.Put(int64(s.Network), int64(h))
		frame.Changed = append(frame.Changed, s)
	}
	for net := range c.index.hashes {
		if !seen[net] {
			frame.Removed = append(frame.Removed, net)
		}
	}
	for _, net := range frame.Removed {
		delete(c.index.hashes, net)
		c.index.ids.Del(int64(net))
	}

	c.pending[frame.ID] = frame
	return frame
}

// Ack records that the client has received and applied frame id,
// advancing the baseline and discarding earlier pending frames (they
// are now implied by the new baseline, whether or not the client
// actually saw them individually).
func (c *PlayerChannel) Ack(id FrameID) {
	if _, ok := c.pending[id]; !ok {
		return
	}
	c.baseline = id
	for pid := range c.pending {
		if pid <= id {
			delete(c.pending, pid)
		}
	}
}

// DropAndResync discards every pending frame and resets the baseline to
// zero: the channel's response to a client reporting it lost frames it
// can't recover from (a gap in the sequence, a reconnect). The next
// BuildFrame after this will naturally describe every visible entity in
// full, since nothing has a recorded hash to diff against any more. This
// is the channel's only error path, and it is never fatal to the
// connection — the worst case is one oversized frame.
func (c *PlayerChannel) DropAndResync() {
	c.index = newEntityIndex()
	c.pending = make(map[FrameID]EntityFrame)
	c.baseline = 0
	c.nextID = 0
}

// Marshal encodes f in the wire layout EntityFrame carries (spec §6):
// id (u32 LE), base (u32 LE), changed count (u16 LE) then each entity's
// network id (u32 LE) and length-prefixed payload, then removed count
// (u16 LE) and each removed network id.
func (f EntityFrame) Marshal() []byte {
	var buf []byte
	buf = appendUint32(buf, uint32(f.ID))
	buf = appendUint32(buf, uint32(f.Base))
	buf = appendUint16(buf, uint16(len(f.Changed)))
	for _, s := range f.Changed {
		buf = appendUint32(buf, uint32(s.Network))
		buf = appendUint16(buf, uint16(len(s.Payload)))
		buf = append(buf, s.Payload...)
	}
	buf = appendUint16(buf, uint16(len(f.Removed)))
	for _, net := range f.Removed {
		buf = appendUint32(buf, uint32(net))
	}
	return buf
}

// UnmarshalEntityFrame decodes the layout Marshal produces.
func UnmarshalEntityFrame(data []byte) (EntityFrame, error) {
	r := newByteReader(data)
	id, err := r.uint32()
	if err != nil {
		return EntityFrame{}, fmt.Errorf("netsnap: read frame id: %w", err)
	}
	base, err := r.uint32()
	if err != nil {
		return EntityFrame{}, fmt.Errorf("netsnap: read base id: %w", err)
	}
	changedCount, err := r.uint16()
	if err != nil {
		return EntityFrame{}, fmt.Errorf("netsnap: read changed count: %w", err)
	}
	frame := EntityFrame{ID: FrameID(id), Base: FrameID(base)}
	for i := uint16(0); i < changedCount; i++ {
		net, err := r.uint32()
		if err != nil {
			return EntityFrame{}, fmt.Errorf("netsnap: read entity network id: %w", err)
		}
		length, err := r.uint16()
		if err != nil {
			return EntityFrame{}, fmt.Errorf("netsnap: read payload length: %w", err)
		}
		payload, err := r.bytes(int(length))
		if err != nil {
			return EntityFrame{}, fmt.Errorf("netsnap: read payload: %w", err)
		}
		frame.Changed = append(frame.Changed, EntityState{Network: ids.NetworkId(net), Payload: payload})
	}
	removedCount, err := r.uint16()
	if err != nil {
		return EntityFrame{}, fmt.Errorf("netsnap: read removed count: %w", err)
	}
	for i := uint16(0); i < removedCount; i++ {
		net, err := r.uint32()
		if err != nil {
			return EntityFrame{}, fmt.Errorf("netsnap: read removed network id: %w", err)
		}
		frame.Removed = append(frame.Removed, ids.NetworkId(net))
	}
	return frame, nil
}

// PlayerStateFrame is one tick's delta of a single player's own ledger
// state: balance and rating, plus an opaque encoded wage/rating history
// tail. This is a separate, independently-acked stream from EntityFrame
// (spec §4.8: "player-owned state... delta-encoded into a separate
// single-frame stream acked independently") since a player channel has
// exactly one subject here rather than a visible-entity set to diff.
type PlayerStateFrame struct {
	ID      FrameID
	Base    FrameID
	Balance int64
	Rating  int32
	History []byte
}

// Marshal encodes f: id, base (u32 LE each), balance (i64 LE), rating
// (i32 LE), history length (u16 LE) then the history bytes.
func (f PlayerStateFrame) Marshal() []byte {
	var buf []byte
	buf = appendUint32(buf, uint32(f.ID))
	buf = appendUint32(buf, uint32(f.Base))
	buf = appendUint64(buf, uint64(f.Balance))
	buf = appendUint32(buf, uint32(f.Rating))
	buf = appendUint16(buf, uint16(len(f.History)))
	buf = append(buf, f.History...)
	return buf
}

// UnmarshalPlayerStateFrame decodes the layout Marshal produces.
func UnmarshalPlayerStateFrame(data []byte) (PlayerStateFrame, error) {
	r := newByteReader(data)
	id, err := r.uint32()
	if err != nil {
		return PlayerStateFrame{}, fmt.Errorf("netsnap: read frame id: %w", err)
	}
	base, err := r.uint32()
	if err != nil {
		return PlayerStateFrame{}, fmt.Errorf("netsnap: read base id: %w", err)
	}
	balance, err := r.uint64()
	if err != nil {
		return PlayerStateFrame{}, fmt.Errorf("netsnap: read balance: %w", err)
	}
	rating, err := r.uint32()
	if err != nil {
		return PlayerStateFrame{}, fmt.Errorf("netsnap: read rating: %w", err)
	}
	length, err := r.uint16()
	if err != nil {
		return PlayerStateFrame{}, fmt.Errorf("netsnap: read history length: %w", err)
	}
	history, err := r.bytes(int(length))
	if err != nil {
		return PlayerStateFrame{}, fmt.Errorf("netsnap: read history: %w", err)
	}
	return PlayerStateFrame{
		ID: FrameID(id), Base: FrameID(base),
		Balance: int64(balance), Rating: int32(rating), History: history,
	}, nil
}

// PlayerStateChannel tracks one player's own-state replication stream,
// mirroring PlayerChannel's frame/baseline/pending bookkeeping but for a
// single scalar subject instead of a visible-entity set.
type PlayerStateChannel struct {
	nextID   FrameID
	baseline FrameID
	pending  map[FrameID]PlayerStateFrame

	lastBalance int64
	lastRating  int32
	sent        bool
}

// NewPlayerStateChannel returns a channel with baseline 0, so the first
// BuildFrame always reports the player's full current state.
func NewPlayerStateChannel() *PlayerStateChannel {
	return &PlayerStateChannel{pending: make(map[FrameID]PlayerStateFrame)}
}

// BuildFrame produces the next PlayerStateFrame if balance, rating or
// history differ from the last frame sent; ok is false when nothing
// changed and no frame need be sent this tick.
func (c *PlayerStateChannel) BuildFrame(balance int64, rating int32, history []byte) (frame PlayerStateFrame, ok bool) {
	if c.sent && balance == c.lastBalance && rating == c.lastRating && len(history) == 0 {
		return PlayerStateFrame{}, false
	}
	frame = PlayerStateFrame{ID: c.nextID, Base: c.baseline, Balance: balance, Rating: rating, History: history}
	c.nextID++
	c.lastBalance, c.lastRating, c.sent = balance, rating, true
	c.pending[frame.ID] = frame
	return frame, true
}

// Ack advances the baseline to id, discarding earlier pending frames.
func (c *PlayerStateChannel) Ack(id FrameID) {
	if _, ok := c.pending[id]; !ok {
		return
	}
	c.baseline = id
	for pid := range c.pending {
		if pid <= id {
			delete(c.pending, pid)
		}
	}
}

// DropAndResync resets the channel so the next BuildFrame reports full
// state regardless of whether it differs from the last one sent.
func (c *PlayerStateChannel) DropAndResync() {
	c.pending = make(map[FrameID]PlayerStateFrame)
	c.baseline = 0
	c.nextID = 0
	c.sent = false
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

// byteReader is a minimal little-endian cursor over a byte slice, used
// by the frame decoders above in place of bufio/bytes.Reader so a
// truncated frame fails with a plain io.ErrUnexpectedEOF rather than a
// partial binary.Read.
type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(buf []byte) *byteReader { return &byteReader{buf: buf} }

func (r *byteReader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *byteReader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *byteReader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}
