// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"github.com/finnbear/moderation"

	"github.com/orbfield/agarnet/internal/world"
)

// PeekCode reads just the leading code byte of a frame without allocating,
// so the transport's dispatch switch never has to fully decode a frame it
// is about to drop (e.g. an unknown code from a stale client version).
func PeekCode(buf []byte) (Code, error) {
	if len(buf) < 1 {
		return 0, malformed(0, errTruncated)
	}
	return Code(buf[0]), nil
}

func payload(buf []byte) []byte {
	if len(buf) < 1 {
		return nil
	}
	return buf[1:]
}

// --- CONNECT ---

type ConnectPayload struct {
	Name string
}

func EncodeConnect(p ConnectPayload) []byte {
	w := newWriter(CodeConnect)
	w.str(p.Name)
	return w.bytes()
}

func DecodeConnect(buf []byte) (ConnectPayload, error) {
	r := newReader(payload(buf))
	name, err := r.str()
	if err != nil {
		return ConnectPayload{}, malformed(CodeConnect, errTruncated)
	}
	if len(name) == 0 || len(name) > world.MaxNameLength {
		return ConnectPayload{}, malformed(CodeConnect, "name length %d out of range", len(name))
	}
	result := moderation.Scan(name)
	if result.Is(moderation.Inappropriate & moderation.Severe) {
		return ConnectPayload{}, malformed(CodeConnect, "rejected name")
	}
	if result.Is(moderation.Inappropriate) {
		name, _ = moderation.Censor(name, moderation.Inappropriate)
	}
	return ConnectPayload{Name: name}, nil
}

// ConnectAck is the server's reply to CONNECT: the newly allocated PlayerID
// and the map dimensions the player's coordinates will be clamped to.
type ConnectAckPayload struct {
	PlayerID    world.PlayerID
	FieldWidth  uint16
	FieldHeight uint16
}

func EncodeConnectAck(p ConnectAckPayload) []byte {
	w := newWriter(CodeConnect)
	w.i32(int32(p.PlayerID))
	w.u16(p.FieldWidth)
	w.u16(p.FieldHeight)
	return w.bytes()
}

func DecodeConnectAck(buf []byte) (ConnectAckPayload, error) {
	r := newReader(payload(buf))
	id, err1 := r.i32()
	w, err2 := r.u16()
	h, err3 := r.u16()
	if err1 != nil || err2 != nil || err3 != nil {
		return ConnectAckPayload{}, malformed(CodeConnect, errTruncated)
	}
	return ConnectAckPayload{PlayerID: world.PlayerID(id), FieldWidth: w, FieldHeight: h}, nil
}

// --- INPUTS ---

type InputsPayload struct {
	X, Y int16
}

func EncodeInputs(p InputsPayload) []byte {
	w := newWriter(CodeInputs)
	w.u16(uint16(p.X))
	w.u16(uint16(p.Y))
	return w.bytes()
}

func DecodeInputs(buf []byte) (InputsPayload, error) {
	r := newReader(payload(buf))
	x, err1 := r.u16()
	y, err2 := r.u16()
	if err1 != nil || err2 != nil {
		return InputsPayload{}, malformed(CodeInputs, errTruncated)
	}
	return InputsPayload{X: int16(x), Y: int16(y)}, nil
}

// --- UPD_PLAYERS ---

type PlayerSnapshot struct {
	ID       world.PlayerID
	Name     string
	X, Y     uint16
	ColorIdx uint8
	Radius   uint16
}

type UpdPlayersPayload struct {
	PacketID   uint32
	ServerTime world.Ticks
	Ping       uint16 // round trip estimate in milliseconds, for the receiving peer only
	Players    []PlayerSnapshot
	Leaders    []string // top-5 names by radius, names only
}

func EncodeUpdPlayers(p UpdPlayersPayload) []byte {
	w := newWriter(CodeUpdPlayers)
	w.u32(p.PacketID)
	w.u16(uint16(p.ServerTime))
	w.u16(p.Ping)
	w.u16(uint16(len(p.Players)))
	for _, pl := range p.Players {
		w.i32(int32(pl.ID))
		w.str(pl.Name)
		w.u16(pl.X)
		w.u16(pl.Y)
		w.u8(pl.ColorIdx)
		w.u16(pl.Radius)
	}
	w.u8(uint8(len(p.Leaders)))
	for _, name := range p.Leaders {
		w.str(name)
	}
	return w.bytes()
}

// DecodeUpdPlayers decodes buf, rejecting any player whose position falls
// outside [0, fieldWidth) x [0, fieldHeight) — the server never sends such
// a position, so one arriving means either a wire bug or a forged frame.
// A zero fieldWidth or fieldHeight (the field size not yet known, e.g.
// before CONNECT completes) skips the bounds check rather than rejecting
// every frame.
func DecodeUpdPlayers(buf []byte, fieldWidth, fieldHeight uint16) (UpdPlayersPayload, error) {
	r := newReader(payload(buf))
	packetID, err := r.u32()
	if err != nil {
		return UpdPlayersPayload{}, malformed(CodeUpdPlayers, errTruncated)
	}
	serverTime, err := r.u16()
	if err != nil {
		return UpdPlayersPayload{}, malformed(CodeUpdPlayers, errTruncated)
	}
	ping, err := r.u16()
	if err != nil {
		return UpdPlayersPayload{}, malformed(CodeUpdPlayers, errTruncated)
	}
	count, err := r.u16()
	if err != nil {
		return UpdPlayersPayload{}, malformed(CodeUpdPlayers, errTruncated)
	}

	out := UpdPlayersPayload{PacketID: packetID, ServerTime: world.Ticks(serverTime), Ping: ping}
	out.Players = make([]PlayerSnapshot, 0, count)
	for i := uint16(0); i < count; i++ {
		id, e1 := r.i32()
		name, e2 := r.str()
		x, e3 := r.u16()
		y, e4 := r.u16()
		color, e5 := r.u8()
		radius, e6 := r.u16()
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil || e6 != nil {
			return UpdPlayersPayload{}, malformed(CodeUpdPlayers, errTruncated)
		}
		if int(color) >= len(world.PlayerPalette) {
			return UpdPlayersPayload{}, malformed(CodeUpdPlayers, "color index %d out of range", color)
		}
		if float32(radius) < world.StartRadius || float32(radius) > world.MaxRadius {
			return UpdPlayersPayload{}, malformed(CodeUpdPlayers, "radius %d out of range", radius)
		}
		if fieldWidth > 0 && x >= fieldWidth {
			return UpdPlayersPayload{}, malformed(CodeUpdPlayers, "x %d out of map bounds", x)
		}
		if fieldHeight > 0 && y >= fieldHeight {
			return UpdPlayersPayload{}, malformed(CodeUpdPlayers, "y %d out of map bounds", y)
		}
		out.Players = append(out.Players, PlayerSnapshot{
			ID: world.PlayerID(id), Name: name, X: x, Y: y, ColorIdx: color, Radius: radius,
		})
	}

	leaderCount, err := r.u8()
	if err != nil {
		return UpdPlayersPayload{}, malformed(CodeUpdPlayers, errTruncated)
	}
	out.Leaders = make([]string, 0, leaderCount)
	for i := uint8(0); i < leaderCount; i++ {
		name, e := r.str()
		if e != nil {
			return UpdPlayersPayload{}, malformed(CodeUpdPlayers, errTruncated)
		}
		out.Leaders = append(out.Leaders, name)
	}
	return out, nil
}

// --- UPD_ORBS ---

type OrbSnapshot struct {
	ID       world.OrbID
	X, Y     uint16
	Radius   uint8
	ColorIdx uint8
}

// UpdOrbsPayload carries only the symmetric difference of a player's orb
// view since the last sync: Added orbs carry full data, Removed carries
// only ids.
type UpdOrbsPayload struct {
	PacketID uint32
	Added    []OrbSnapshot
	Removed  []world.OrbID
}

func EncodeUpdOrbs(p UpdOrbsPayload) []byte {
	w := newWriter(CodeUpdOrbs)
	w.u32(p.PacketID)
	w.u16(uint16(len(p.Added)))
	for _, o := range p.Added {
		w.u32(uint32(o.ID))
		w.u16(o.X)
		w.u16(o.Y)
		w.u8(o.Radius)
		w.u8(o.ColorIdx)
	}
	w.u16(uint16(len(p.Removed)))
	for _, id := range p.Removed {
		w.u32(uint32(id))
	}
	return w.bytes()
}

// DecodeUpdOrbs decodes buf, rejecting any orb positioned outside
// [0, fieldWidth) x [0, fieldHeight) on the same terms as DecodeUpdPlayers.
func DecodeUpdOrbs(buf []byte, fieldWidth, fieldHeight uint16) (UpdOrbsPayload, error) {
	r := newReader(payload(buf))
	packetID, err := r.u32()
	if err != nil {
		return UpdOrbsPayload{}, malformed(CodeUpdOrbs, errTruncated)
	}
	addCount, err := r.u16()
	if err != nil {
		return UpdOrbsPayload{}, malformed(CodeUpdOrbs, errTruncated)
	}
	out := UpdOrbsPayload{PacketID: packetID}
	out.Added = make([]OrbSnapshot, 0, addCount)
	for i := uint16(0); i < addCount; i++ {
		id, e1 := r.u32()
		x, e2 := r.u16()
		y, e3 := r.u16()
		radius, e4 := r.u8()
		color, e5 := r.u8()
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
			return UpdOrbsPayload{}, malformed(CodeUpdOrbs, errTruncated)
		}
		if float32(radius) < world.MinOrbRadius || float32(radius) > world.MaxOrbRadius {
			return UpdOrbsPayload{}, malformed(CodeUpdOrbs, "orb radius %d out of range", radius)
		}
		if fieldWidth > 0 && x >= fieldWidth {
			return UpdOrbsPayload{}, malformed(CodeUpdOrbs, "x %d out of map bounds", x)
		}
		if fieldHeight > 0 && y >= fieldHeight {
			return UpdOrbsPayload{}, malformed(CodeUpdOrbs, "y %d out of map bounds", y)
		}
		out.Added = append(out.Added, OrbSnapshot{ID: world.OrbID(id), X: x, Y: y, Radius: radius, ColorIdx: color})
	}
	removeCount, err := r.u16()
	if err != nil {
		return UpdOrbsPayload{}, malformed(CodeUpdOrbs, errTruncated)
	}
	out.Removed = make([]world.OrbID, 0, removeCount)
	for i := uint16(0); i < removeCount; i++ {
		id, e := r.u32()
		if e != nil {
			return UpdOrbsPayload{}, malformed(CodeUpdOrbs, errTruncated)
		}
		out.Removed = append(out.Removed, world.OrbID(id))
	}
	return out, nil
}

// updOrbsFixedOverhead, updOrbsAddedSize, and updOrbsRemovedSize mirror the
// field widths EncodeUpdOrbs writes, used by ShardUpdOrbs to predict an
// encoded frame's size without actually encoding it.
const (
	updOrbsFixedOverhead = 1 + 4 + 2 + 2 // code + packet_id + added count + removed count
	updOrbsAddedSize     = 4 + 2 + 2 + 1 + 1
	updOrbsRemovedSize   = 4
)

// ShardUpdOrbs splits added/removed into one or more payloads, none of
// which would encode past maxDatagramSize bytes, so a player's orb view
// diff never risks IP fragmentation or an oversized UDP send. Every shard
// still carries the fixed per-frame overhead, so the split is conservative
// rather than bin-packing to the byte.
func ShardUpdOrbs(added []OrbSnapshot, removed []world.OrbID, maxDatagramSize int) []UpdOrbsPayload {
	budget := maxDatagramSize - updOrbsFixedOverhead
	if budget < updOrbsAddedSize {
		budget = updOrbsAddedSize // always make forward progress on a single added orb
	}

	var shards []UpdOrbsPayload
	var curAdded []OrbSnapshot
	var curRemoved []world.OrbID
	curSize := 0

	flush := func() {
		if len(curAdded) == 0 && len(curRemoved) == 0 {
			return
		}
		shards = append(shards, UpdOrbsPayload{Added: curAdded, Removed: curRemoved})
		curAdded, curRemoved, curSize = nil, nil, 0
	}

	for _, a := range added {
		if curSize+updOrbsAddedSize > budget {
			flush()
		}
		curAdded = append(curAdded, a)
		curSize += updOrbsAddedSize
	}
	for _, id := range removed {
		if curSize+updOrbsRemovedSize > budget {
			flush()
		}
		curRemoved = append(curRemoved, id)
		curSize += updOrbsRemovedSize
	}
	flush()
	return shards
}

// --- ACK ---

type AckPayload struct {
	PacketID uint32
}

func EncodeAck(p AckPayload) []byte {
	w := newWriter(CodeAck)
	w.u32(p.PacketID)
	return w.bytes()
}

func DecodeAck(buf []byte) (AckPayload, error) {
	r := newReader(payload(buf))
	id, err := r.u32()
	if err != nil {
		return AckPayload{}, malformed(CodeAck, errTruncated)
	}
	return AckPayload{PacketID: id}, nil
}

// --- PING ---

type PingPayload struct {
	ServerPulse world.Ticks
}

func EncodePing(p PingPayload) []byte {
	w := newWriter(CodePing)
	w.u16(uint16(p.ServerPulse))
	return w.bytes()
}

func DecodePing(buf []byte) (PingPayload, error) {
	r := newReader(payload(buf))
	pulse, err := r.u16()
	if err != nil {
		return PingPayload{}, malformed(CodePing, errTruncated)
	}
	return PingPayload{ServerPulse: world.Ticks(pulse)}, nil
}

// --- DEATH ---

type DeathPayload struct {
	PacketID    uint32
	NewPlayerID world.PlayerID
}

func EncodeDeath(p DeathPayload) []byte {
	w := newWriter(CodeDeath)
	w.u32(p.PacketID)
	w.i32(int32(p.NewPlayerID))
	return w.bytes()
}

func DecodeDeath(buf []byte) (DeathPayload, error) {
	r := newReader(payload(buf))
	packetID, err1 := r.u32()
	newID, err2 := r.i32()
	if err1 != nil || err2 != nil {
		return DeathPayload{}, malformed(CodeDeath, errTruncated)
	}
	return DeathPayload{PacketID: packetID, NewPlayerID: world.PlayerID(newID)}, nil
}

// --- DISCONNECT ---

type DisconnectReason uint8

const (
	DisconnectReasonClient DisconnectReason = iota
	DisconnectReasonTimeout
	DisconnectReasonServerFull
	DisconnectReasonKicked
)

type DisconnectPayload struct {
	Reason DisconnectReason
}

func EncodeDisconnect(p DisconnectPayload) []byte {
	w := newWriter(CodeDisconnect)
	w.u8(uint8(p.Reason))
	return w.bytes()
}

func DecodeDisconnect(buf []byte) (DisconnectPayload, error) {
	r := newReader(payload(buf))
	reason, err := r.u8()
	if err != nil {
		return DisconnectPayload{}, malformed(CodeDisconnect, errTruncated)
	}
	return DisconnectPayload{Reason: DisconnectReason(reason)}, nil
}
