// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"net"
	"sync"
	"time"

	"github.com/orbfield/agarnet/internal/world"
)

// Peer is one connected address's transport-level bookkeeping: everything
// the server needs to reliably deliver frames to one address without
// touching game state. It intentionally carries no simulation data.
type Peer struct {
	Addr     *net.UDPAddr
	PlayerID world.PlayerID

	mu             sync.Mutex
	lastHeardAt    time.Time
	lastServerTime world.Ticks
	rttMillis      uint16
	unacked        map[uint32]*unackedFrame
	nextPacketID   uint32

	// Previous/Next implement the doubly-linked PeerList, mirroring the
	// teacher's ClientList so registration/removal stays O(1).
	Previous, Next *Peer
}

type unackedFrame struct {
	data    []byte
	sentAt  time.Time
	firstAt time.Time
}

func newPeer(addr *net.UDPAddr, id world.PlayerID) *Peer {
	return &Peer{
		Addr:        addr,
		PlayerID:    id,
		lastHeardAt: time.Now(),
		unacked:     make(map[uint32]*unackedFrame),
	}
}

// Touch records that a frame (of any kind) was just received from this peer.
func (p *Peer) Touch() {
	p.mu.Lock()
	p.lastHeardAt = time.Now()
	p.mu.Unlock()
}

// SilentFor reports how long it has been since any frame was received.
func (p *Peer) SilentFor() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.lastHeardAt)
}

// RTT returns the most recently measured round-trip time.
func (p *Peer) RTT() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rttMillis
}

// RecordPing updates the RTT estimate from a PING frame's echoed server
// pulse, if it is newer than anything previously recorded — out-of-order
// pings must never move the measurement backwards. "Newer" is judged on the
// signed 16-bit difference, so it keeps working across a Ticks wrap.
func (p *Peer) RecordPing(pulse world.Ticks, rtt time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int16(pulse-p.lastServerTime) <= 0 && p.lastServerTime != 0 {
		return
	}
	p.lastServerTime = pulse
	p.rttMillis = uint16(rtt.Milliseconds())
}

func (p *Peer) nextPacket() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextPacketID++
	return p.nextPacketID
}

func (p *Peer) trackUnacked(packetID uint32, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.unacked[packetID] = &unackedFrame{data: data, sentAt: now, firstAt: now}
}

func (p *Peer) ack(packetID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.unacked, packetID)
}

// duePackets returns every still-unacked frame whose age exceeds
// world.TimeoutLimit (to be dropped by the caller) separately from those
// merely due for retransmission. Every frame that has not timed out is
// returned for retransmission on each call, however recently it was last
// sent; its sentAt is updated to now but is not consulted when choosing
// what to resend.
func (p *Peer) duePackets(now time.Time) (retransmit [][]byte, timedOut []uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, frame := range p.unacked {
		if now.Sub(frame.firstAt) > world.TimeoutLimit {
			timedOut = append(timedOut, id)
			continue
		}
		retransmit = append(retransmit, frame.data)
		frame.sentAt = now
	}
	for _, id := range timedOut {
		delete(p.unacked, id)
	}
	return retransmit, timedOut
}

// PeerList is a doubly-linked list of peers, mirroring the teacher's
// ClientList: O(1) add/remove without per-tick slice compaction.
type PeerList struct {
	first, last *Peer
	len         int
}

func (l *PeerList) Add(p *Peer) {
	if l.last != nil {
		l.last.Next = p
		p.Previous = l.last
	} else {
		l.first = p
	}
	l.last = p
	l.len++
}

func (l *PeerList) Remove(p *Peer) {
	if p.Previous != nil {
		p.Previous.Next = p.Next
	} else {
		l.first = p.Next
	}
	if p.Next != nil {
		p.Next.Previous = p.Previous
	} else {
		l.last = p.Previous
	}
	p.Previous, p.Next = nil, nil
	l.len--
}

func (l *PeerList) Len() int { return l.len }

func (l *PeerList) ForEach(f func(*Peer)) {
	for p := l.first; p != nil; {
		next := p.Next
		f(p)
		p = next
	}
}
