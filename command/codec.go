package command

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/placement"
	"github.com/thinkofname/univercity-core/room"
	"github.com/thinkofname/univercity-core/tile"
)

// kind tags each Command type on the wire (spec §6's ExecutedCommands/
// RemoteExecutedCommands payloads), in a fixed order independent of the
// Go type switch's iteration order.
type kind uint8

const (
	kindPlaceRoom kind = iota
	kindResizeRoom
	kindCancelRoomPlacement
	kindFinalizeRoomPlacement
	kindPlaceObject
	kindRemoveObject
	kindPayStaff
	kindExecRoom
	kindExecIdle
	kindSorry
)

// Marshal encodes cmd as a self-describing byte sequence: a kind tag
// followed by the fields a remote peer needs to re-execute it. Only
// command arguments cross the wire, never a command's private undo
// bookkeeping (roomID, oldArea, charged, and so on) — those are
// recomputed locally by Execute when the command runs there, matching
// the save package's tagged-record style (fixed-width fields, u16
// length-prefixed strings and slices).
func Marshal(c Command) ([]byte, error) {
	var buf bytes.Buffer
	switch v := c.(type) {
	case *PlaceRoom:
		buf.WriteByte(byte(kindPlaceRoom))
		writePlayerID(&buf, v.Player)
		writeResourceKey(&buf, v.Key)
		writeBounds(&buf, v.Area)
	case *ResizeRoom:
		buf.WriteByte(byte(kindResizeRoom))
		writeRoomID(&buf, v.Room)
		writeBounds(&buf, v.NewArea)
	case *CancelRoomPlacement:
		buf.WriteByte(byte(kindCancelRoomPlacement))
		writeRoomID(&buf, v.Room)
	case *FinalizeRoomPlacement:
		buf.WriteByte(byte(kindFinalizeRoomPlacement))
		writeRoomID(&buf, v.Room)
	case *PlaceObject:
		buf.WriteByte(byte(kindPlaceObject))
		writeRoomID(&buf, v.Room)
		writeInt32(&buf, int32(v.Slot))
		writeResourceKey(&buf, v.Key)
		writeUint32(&buf, v.Version)
		writeActions(&buf, v.Actions)
	case *RemoveObject:
		buf.WriteByte(byte(kindRemoveObject))
		writeRoomID(&buf, v.Room)
		writeInt32(&buf, int32(v.Slot))
	case *PayStaff:
		buf.WriteByte(byte(kindPayStaff))
		writePlayerID(&buf, v.Player)
		writeInt64(&buf, v.Amount)
	case *ExecRoom:
		buf.WriteByte(byte(kindExecRoom))
		writeRoomID(&buf, v.Room)
		writeEntryPoint(&buf, v.Entry)
	case *ExecIdle:
		buf.WriteByte(byte(kindExecIdle))
		writeEntityID(&buf, v.Entity)
		writeEntryPoint(&buf, v.Entry)
	case *Sorry:
		buf.WriteByte(byte(kindSorry))
		writeString(&buf, v.Reason)
	default:
		return nil, fmt.Errorf("command: marshal: unrecognized command type %T", c)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a byte sequence Marshal produced. An unknown tag or
// a truncated payload is an error; a decoded batch with one bad entry
// should be treated by the caller the same as any other command
// rejection (spec §4.7's validation-fails-no-broadcast path).
func Unmarshal(data []byte) (Command, error) {
	r := bytes.NewReader(data)
	tagByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("command: unmarshal: read tag: %w", err)
	}

	switch kind(tagByte) {
	case kindPlaceRoom:
		player, err := readPlayerID(r)
		if err != nil {
			return nil, err
		}
		key, err := readResourceKey(r)
		if err != nil {
			return nil, err
		}
		area, err := readBounds(r)
		if err != nil {
			return nil, err
		}
		return &PlaceRoom{Player: player, Key: key, Area: area}, nil

	case kindResizeRoom:
		roomID, err := readRoomID(r)
		if err != nil {
			return nil, err
		}
		area, err := readBounds(r)
		if err != nil {
			return nil, err
		}
		return &ResizeRoom{Room: roomID, NewArea: area}, nil

	case kindCancelRoomPlacement:
		roomID, err := readRoomID(r)
		if err != nil {
			return nil, err
		}
		return &CancelRoomPlacement{Room: roomID}, nil

	case kindFinalizeRoomPlacement:
		roomID, err := readRoomID(r)
		if err != nil {
			return nil, err
		}
		return &FinalizeRoomPlacement{Room: roomID}, nil

	case kindPlaceObject:
		roomID, err := readRoomID(r)
		if err != nil {
			return nil, err
		}
		slot, err := readInt32(r)
		if err != nil {
			return nil, err
		}
		key, err := readResourceKey(r)
		if err != nil {
			return nil, err
		}
		version, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		actions, err := readActions(r)
		if err != nil {
			return nil, err
		}
		return &PlaceObject{Room: roomID, Slot: int(slot), Key: key, Version: version, Actions: actions}, nil

	case kindRemoveObject:
		roomID, err := readRoomID(r)
		if err != nil {
			return nil, err
		}
		slot, err := readInt32(r)
		if err != nil {
			return nil, err
		}
		return &RemoveObject{Room: roomID, Slot: int(slot)}, nil

	case kindPayStaff:
		player, err := readPlayerID(r)
		if err != nil {
			return nil, err
		}
		amount, err := readInt64(r)
		if err != nil {
			return nil, err
		}
		return &PayStaff{Player: player, Amount: amount}, nil

	case kindExecRoom:
		roomID, err := readRoomID(r)
		if err != nil {
			return nil, err
		}
		entry, err := readEntryPoint(r)
		if err != nil {
			return nil, err
		}
		return &ExecRoom{Room: roomID, Entry: entry}, nil

	case kindExecIdle:
		entity, err := readEntityID(r)
		if err != nil {
			return nil, err
		}
		entry, err := readEntryPoint(r)
		if err != nil {
			return nil, err
		}
		return &ExecIdle{Entity: entity, Entry: entry}, nil

	case kindSorry:
		reason, err := readString(r)
		if err != nil {
			return nil, err
		}
		return &Sorry{Reason: reason}, nil

	default:
		return nil, fmt.Errorf("command: unmarshal: unknown command tag %d", tagByte)
	}
}

func writeInt32(w io.Writer, v int32)   { binary.Write(w, binary.LittleEndian, v) }
func writeUint32(w io.Writer, v uint32) { binary.Write(w, binary.LittleEndian, v) }
func writeInt64(w io.Writer, v int64)   { binary.Write(w, binary.LittleEndian, v) }

func readInt32(r io.Reader) (int32, error) {
	var v int32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readInt64(r io.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func writeString(w io.Writer, s string) {
	binary.Write(w, binary.LittleEndian, uint16(len(s)))
	io.WriteString(w, s)
}

func readString(r io.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", fmt.Errorf("command: read string length: %w", err)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("command: read string: %w", err)
	}
	return string(buf), nil
}

func writePlayerID(w io.Writer, p ids.PlayerId) { binary.Write(w, binary.LittleEndian, int16(p)) }

func readPlayerID(r io.Reader) (ids.PlayerId, error) {
	var v int16
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("command: read player id: %w", err)
	}
	return ids.PlayerId(v), nil
}

func writeRoomID(w io.Writer, id ids.RoomId) { binary.Write(w, binary.LittleEndian, int16(id)) }

func readRoomID(r io.Reader) (ids.RoomId, error) {
	var v int16
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("command: read room id: %w", err)
	}
	return ids.RoomId(v), nil
}

func writeEntityID(w io.Writer, e ids.EntityId) {
	binary.Write(w, binary.LittleEndian, e.Index())
	binary.Write(w, binary.LittleEndian, e.Generation())
}

func readEntityID(r io.Reader) (ids.EntityId, error) {
	var index, gen uint32
	if err := binary.Read(r, binary.LittleEndian, &index); err != nil {
		return ids.EntityId{}, fmt.Errorf("command: read entity index: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &gen); err != nil {
		return ids.EntityId{}, fmt.Errorf("command: read entity generation: %w", err)
	}
	return ids.NewEntityId(index, gen), nil
}

func writeResourceKey(w io.Writer, k ids.ResourceKey) {
	writeString(w, string(k.Module))
	writeString(w, k.Path)
}

func readResourceKey(r io.Reader) (ids.ResourceKey, error) {
	module, err := readString(r)
	if err != nil {
		return ids.ResourceKey{}, err
	}
	path, err := readString(r)
	if err != nil {
		return ids.ResourceKey{}, err
	}
	return ids.New(ids.ModuleKey(module), path), nil
}

func writeEntryPoint(w io.Writer, e ids.EntryPoint) {
	writeResourceKey(w, e.Key)
	writeString(w, e.Method)
}

func readEntryPoint(r io.Reader) (ids.EntryPoint, error) {
	key, err := readResourceKey(r)
	if err != nil {
		return ids.EntryPoint{}, err
	}
	method, err := readString(r)
	if err != nil {
		return ids.EntryPoint{}, err
	}
	return ids.EntryPoint{Key: key, Method: method}, nil
}

func writeBounds(w io.Writer, b room.Bounds) {
	writeInt32(w, b.MinX)
	writeInt32(w, b.MinY)
	writeInt32(w, b.MaxX)
	writeInt32(w, b.MaxY)
}

func readBounds(r io.Reader) (room.Bounds, error) {
	minX, err := readInt32(r)
	if err != nil {
		return room.Bounds{}, err
	}
	minY, err := readInt32(r)
	if err != nil {
		return room.Bounds{}, err
	}
	maxX, err := readInt32(r)
	if err != nil {
		return room.Bounds{}, err
	}
	maxY, err := readInt32(r)
	if err != nil {
		return room.Bounds{}, err
	}
	return room.Bounds{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}, nil
}

func writeActions(w io.Writer, actions []placement.Action) {
	binary.Write(w, binary.LittleEndian, uint16(len(actions)))
	for _, a := range actions {
		w.Write([]byte{byte(a.Kind)})
		writeInt32(w, int32(a.SubX))
		writeInt32(w, int32(a.SubY))
		writeInt32(w, int32(a.SubW))
		writeInt32(w, int32(a.SubH))
		writeInt32(w, a.TileX)
		writeInt32(w, a.TileY)
		w.Write([]byte{byte(a.Dir)})
		writeResourceKey(w, a.TileKind)
		w.Write([]byte{byte(a.Flag)})
		writeResourceKey(w, a.WindowKind)
	}
}

func readActions(r io.Reader) ([]placement.Action, error) {
	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("command: read action count: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	actions := make([]placement.Action, count)
	oneByte := make([]byte, 1)
	for i := range actions {
		if _, err := io.ReadFull(r, oneByte); err != nil {
			return nil, fmt.Errorf("command: read action kind: %w", err)
		}
		a := placement.Action{Kind: placement.ActionKind(oneByte[0])}
		subX, err := readInt32(r)
		if err != nil {
			return nil, err
		}
		subY, err := readInt32(r)
		if err != nil {
			return nil, err
		}
		subW, err := readInt32(r)
		if err != nil {
			return nil, err
		}
		subH, err := readInt32(r)
		if err != nil {
			return nil, err
		}
		a.SubX, a.SubY, a.SubW, a.SubH = int(subX), int(subY), int(subW), int(subH)
		if a.TileX, err = readInt32(r); err != nil {
			return nil, err
		}
		if a.TileY, err = readInt32(r); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, oneByte); err != nil {
			return nil, fmt.Errorf("command: read action dir: %w", err)
		}
		a.Dir = tile.Direction(oneByte[0])
		if a.TileKind, err = readResourceKey(r); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, oneByte); err != nil {
			return nil, fmt.Errorf("command: read action flag: %w", err)
		}
		a.Flag = tile.WallFlag(oneByte[0])
		if a.WindowKind, err = readResourceKey(r); err != nil {
			return nil, err
		}
		actions[i] = a
	}
	return actions, nil
}
