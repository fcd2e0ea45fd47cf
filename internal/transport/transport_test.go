// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/orbfield/agarnet/internal/wire"
)

func newLoopback(t *testing.T) (*Transport, *net.UDPConn) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	tr := New(conn, DefaultConfig(), nil)
	return tr, conn
}

func TestTransport_PingRoundTrip(t *testing.T) {
	server, serverConn := newLoopback(t)
	defer serverConn.Close()

	received := make(chan struct{}, 1)
	server.OnCode(wire.CodePing, func(addr *net.UDPAddr, code wire.Code, payload []byte) {
		received <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Run(ctx)

	clientConn, err := net.DialUDP("udp", nil, serverConn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer clientConn.Close()

	frame := wire.EncodePing(wire.PingPayload{ServerPulse: 1})
	if _, err := clientConn.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ping to be dispatched")
	}
}

func TestTransport_AddRemovePeer(t *testing.T) {
	server, serverConn := newLoopback(t)
	defer serverConn.Close()

	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9999}
	p := server.AddPeer(addr, 1)
	if got, ok := server.PeerByAddr(addr); !ok || got != p {
		t.Fatalf("expected peer to be tracked")
	}
	server.RemovePeer(addr)
	if _, ok := server.PeerByAddr(addr); ok {
		t.Fatalf("expected peer to be removed")
	}
	// Removing twice must not panic.
	server.RemovePeer(addr)
}

func TestTransport_BandwidthSampling(t *testing.T) {
	server, serverConn := newLoopback(t)
	defer serverConn.Close()

	if bw := server.Bandwidth(); bw != 0 {
		t.Fatalf("expected zero bandwidth before any probe, got %v", bw)
	}

	start := time.Now()
	server.lastProbeAt = start
	server.loadBytes.Store(1000)

	server.sampleBandwidth(start.Add(time.Second))

	if bw := server.Bandwidth(); bw != 1000 {
		t.Fatalf("expected 1000 bytes/sec over a one-second window, got %v", bw)
	}
	if server.loadBytes.Load() != 0 {
		t.Fatalf("expected load counter to reset after sampling")
	}
}

func TestDegradedNetwork_Ramps(t *testing.T) {
	var d DegradedNetwork
	if d.AddedPing() != 0 {
		t.Fatalf("expected zero ping by default")
	}
	for i := 0; i < 1000; i++ {
		d.IncreasePing()
	}
	if d.AddedPing() > maxAddedPing {
		t.Fatalf("ping exceeded max: %v", d.AddedPing())
	}
	for i := 0; i < 1000; i++ {
		d.DecreasePing()
	}
	if d.AddedPing() != 0 {
		t.Fatalf("expected ping to ramp back to zero, got %v", d.AddedPing())
	}
}
