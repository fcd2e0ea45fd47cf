// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport implements the UDP socket plumbing: a reader goroutine
// that dispatches inbound frames by code, an ack/retransmit scheduler
// goroutine that drives partial reliability, and a Send path any number of
// callers can use concurrently. It knows nothing about game rules; callers
// (internal/server, internal/client) wire Handlers to react to frames.
package transport

import (
	"context"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/orbfield/agarnet/internal/queue"
	"github.com/orbfield/agarnet/internal/wire"
	"github.com/orbfield/agarnet/internal/world"
)

// outboundQueueCapacity bounds how many not-yet-written packets Transport
// will hold before dropping the oldest. A slow or congested socket write
// should shed load rather than let senders block or memory grow unbounded.
const outboundQueueCapacity = 4096

type outboundPacket struct {
	addr *net.UDPAddr
	data []byte
}

// Handler reacts to one decoded inbound frame from addr. Handlers run on
// the single reader goroutine and must not block.
type Handler func(addr *net.UDPAddr, code wire.Code, payload []byte)

// Transport owns one UDP socket and the send/receive machinery shared by
// the server and the client. Both sides use it, since both sides need the
// same selective-ack retransmit behavior, just pointed at a different
// number of remote addresses (many for the server, one for the client).
type Transport struct {
	conn *net.UDPConn
	log  *log.Logger

	degraded DegradedNetwork
	connectLimiter *rate.Limiter

	handlersMu sync.RWMutex
	handlers   map[wire.Code]Handler

	peersMu sync.RWMutex
	byAddr  map[string]*Peer
	list    PeerList

	rngPool sync.Pool

	outbound     *queue.Bounded[outboundPacket]
	outboundWake chan struct{}

	// loadBytes accumulates bytes written to and read from the socket
	// between stats probes; statsLoop drains it every world.StatsProbeInterval
	// into bandwidthBps, mirroring the original's data_load/last_probe_time
	// bandwidth sampling.
	loadBytes    atomic.Int64
	statsMu      sync.Mutex
	bandwidthBps float64
	lastProbeAt  time.Time
}

// Config bundles the knobs Transport needs at construction time.
type Config struct {
	// ConnectBurst and ConnectPerSecond configure a single token bucket
	// shared by every CONNECT, whatever its source address, guarding against
	// a connection flood. Admission is not tracked per address. This is a
	// transport concern, not anti-cheat.
	ConnectBurst     int
	ConnectPerSecond float64
}

func DefaultConfig() Config {
	return Config{ConnectBurst: 5, ConnectPerSecond: 1}
}

// New binds conn and prepares dispatch state. conn is not listened on until
// Run is called.
func New(conn *net.UDPConn, cfg Config, logger *log.Logger) *Transport {
	if logger == nil {
		logger = log.Default()
	}
	t := &Transport{
		conn:           conn,
		log:            logger,
		connectLimiter: rate.NewLimiter(rate.Limit(cfg.ConnectPerSecond), cfg.ConnectBurst),
		handlers:       make(map[wire.Code]Handler),
		byAddr:         make(map[string]*Peer),
		outbound:       queue.New[outboundPacket](outboundQueueCapacity),
		outboundWake:   make(chan struct{}, 1),
		lastProbeAt:    time.Now(),
	}
	t.rngPool.New = func() interface{} { return rand.New(rand.NewSource(time.Now().UnixNano())) }
	return t
}

// Degraded exposes the knobs for a debug control path to adjust.
func (t *Transport) Degraded() *DegradedNetwork { return &t.degraded }

// Bandwidth returns the most recently sampled throughput, in bytes per
// second across both directions, as of the last world.StatsProbeInterval
// tick. It reads zero until the first probe completes.
func (t *Transport) Bandwidth() float64 {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.bandwidthBps
}

// OnCode registers the handler invoked for frames carrying code.
func (t *Transport) OnCode(code wire.Code, h Handler) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()
	t.handlers[code] = h
}

// AddPeer begins tracking addr under id. Returns the existing peer if addr
// is already known.
func (t *Transport) AddPeer(addr *net.UDPAddr, id world.PlayerID) *Peer {
	key := addr.String()
	t.peersMu.Lock()
	defer t.peersMu.Unlock()
	if p, ok := t.byAddr[key]; ok {
		return p
	}
	p := newPeer(addr, id)
	t.byAddr[key] = p
	t.list.Add(p)
	return p
}

func (t *Transport) PeerByAddr(addr *net.UDPAddr) (*Peer, bool) {
	t.peersMu.RLock()
	defer t.peersMu.RUnlock()
	p, ok := t.byAddr[addr.String()]
	return p, ok
}

// RemovePeer stops tracking addr. Idempotent.
func (t *Transport) RemovePeer(addr *net.UDPAddr) {
	key := addr.String()
	t.peersMu.Lock()
	defer t.peersMu.Unlock()
	p, ok := t.byAddr[key]
	if !ok {
		return
	}
	delete(t.byAddr, key)
	t.list.Remove(p)
}

// ForEachPeer runs f over every currently tracked peer. f must not add or
// remove peers.
func (t *Transport) ForEachPeer(f func(*Peer)) {
	t.peersMu.RLock()
	defer t.peersMu.RUnlock()
	t.list.ForEach(f)
}

// AllowConnect reports whether a CONNECT from addr should be admitted by
// the flood guard, independent of whether the server itself has capacity.
func (t *Transport) AllowConnect(addr *net.UDPAddr) bool {
	return t.connectLimiter.AllowN(time.Now(), 1)
}

// Send queues data for addr unreliably: a dropped, lost, or evicted send is
// never retried. Used for INPUTS, PING, UPD_PLAYERS, CONNECT, DISCONNECT.
// The write itself happens on the writer goroutine, off of the caller's
// stack, via a bounded drop-oldest queue so a congested socket sheds load
// instead of blocking callers or growing memory without bound.
func (t *Transport) Send(addr *net.UDPAddr, data []byte) error {
	r := t.rngPool.Get().(*rand.Rand)
	drop := t.degraded.ShouldDropSend(time.Now(), r)
	t.rngPool.Put(r)
	if drop {
		return nil
	}
	if ping := t.degraded.AddedPing(); ping > 0 {
		time.AfterFunc(ping, func() { t.enqueueOutbound(addr, data) })
		return nil
	}
	t.enqueueOutbound(addr, data)
	return nil
}

func (t *Transport) enqueueOutbound(addr *net.UDPAddr, data []byte) {
	t.outbound.Push(outboundPacket{addr: addr, data: data})
	select {
	case t.outboundWake <- struct{}{}:
	default:
	}
}

// SendReliable transmits data to peer and registers it for selective-ack
// retransmission until Ack is called with the returned packet id, or until
// world.TimeoutLimit elapses. Used for UPD_ORBS and DEATH.
func (t *Transport) SendReliable(peer *Peer, encode func(packetID uint32) []byte) uint32 {
	id := peer.nextPacket()
	data := encode(id)
	peer.trackUnacked(id, data)
	_ = t.Send(peer.Addr, data)
	return id
}

// Ack marks packetID as delivered for peer, halting retransmission.
func (t *Transport) Ack(peer *Peer, packetID uint32) {
	peer.ack(packetID)
}

// Run starts the reader, ack-scheduler, writer and stats goroutines and
// blocks until ctx is cancelled or any of them returns an error.
func (t *Transport) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.readLoop(ctx) })
	g.Go(func() error { return t.ackSchedulerLoop(ctx) })
	g.Go(func() error { return t.writerLoop(ctx) })
	g.Go(func() error { return t.statsLoop(ctx) })
	return g.Wait()
}

func (t *Transport) writerLoop(ctx context.Context) error {
	for {
		for {
			pkt, ok := t.outbound.Pop()
			if !ok {
				break
			}
			n, err := t.conn.WriteToUDP(pkt.data, pkt.addr)
			if err == nil {
				t.loadBytes.Add(int64(n))
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.outboundWake:
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func (t *Transport) readLoop(ctx context.Context) error {
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			t.log.Warn("recv failed", "err", err)
			continue
		}
		t.loadBytes.Add(int64(n))

		if t.degraded.ShouldDropRecv(time.Now()) {
			continue
		}

		frame := make([]byte, n)
		copy(frame, buf[:n])

		code, err := wire.PeekCode(frame)
		if err != nil {
			t.log.Warn("malformed frame", "err", err, "addr", addr)
			continue
		}

		t.handlersMu.RLock()
		h := t.handlers[code]
		t.handlersMu.RUnlock()
		if h == nil {
			t.log.Debug("no handler for code", "code", code)
			continue
		}
		h(addr, code, frame)
	}
}

func (t *Transport) ackSchedulerLoop(ctx context.Context) error {
	ticker := time.NewTicker(world.AckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := time.Now()
			t.ForEachPeer(func(p *Peer) {
				retransmit, timedOut := p.duePackets(now)
				for _, data := range retransmit {
					_ = t.Send(p.Addr, data)
				}
				if len(timedOut) > 0 {
					t.log.Debug("packets timed out without ack", "peer", p.PlayerID, "count", len(timedOut))
				}
			})
		}
	}
}

// statsLoop samples accumulated send/receive bytes into a bytes-per-second
// figure every world.StatsProbeInterval, resetting the counter each time so
// Bandwidth always reflects the most recent probe window rather than a
// running average since startup.
func (t *Transport) statsLoop(ctx context.Context) error {
	ticker := time.NewTicker(world.StatsProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.sampleBandwidth(time.Now())
		}
	}
}

func (t *Transport) sampleBandwidth(now time.Time) {
	load := t.loadBytes.Swap(0)
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	if elapsed := now.Sub(t.lastProbeAt).Seconds(); elapsed > 0 {
		t.bandwidthBps = float64(load) / elapsed
	}
	t.lastProbeAt = now
}

// RemoteAddr resolves host:port (or host, using world.NetworkPort) for
// client use.
func RemoteAddr(hostport string) (*net.UDPAddr, error) {
	if _, _, err := net.SplitHostPort(hostport); err != nil {
		hostport = net.JoinHostPort(hostport, strconv.Itoa(world.NetworkPort))
	}
	return net.ResolveUDPAddr("udp", hostport)
}
