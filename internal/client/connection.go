// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/orbfield/agarnet/internal/wire"
	"github.com/orbfield/agarnet/internal/world"
)

// connectionAttempts/connectionAttemptInterval mirror the original's
// CONNECTION_ATTEMPTS / CONNECTION_ATTEMPT_INTERVAL retry loop: a CONNECT
// frame is unreliable, so the client resends it itself until acked.
const (
	connectionAttempts       = 10
	connectionAttemptInterval = 200 * time.Millisecond
)

// Connect resolves hostport and repeatedly sends CONNECT until the server
// acks with a PlayerID, or the attempt budget is exhausted.
func (c *Client) Connect(ctx context.Context, hostport, name string) error {
	addr, err := transportResolve(hostport)
	if err != nil {
		return err
	}
	c.serverAddr = addr

	frame := wire.EncodeConnect(wire.ConnectPayload{Name: name})
	for attempt := 0; attempt < connectionAttempts; attempt++ {
		_ = c.transport.Send(addr, frame)

		select {
		case <-c.connectAcked:
			c.mu.Lock()
			c.connected = true
			c.lastHeardAt = time.Now()
			c.serverTimeEstimate = c.lastHeardAt
			c.mu.Unlock()
			return nil
		case <-time.After(connectionAttemptInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("client: no response from %s after %d attempts", hostport, connectionAttempts)
}

func transportResolve(hostport string) (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", hostport)
}

func (c *Client) handleConnectAck(addr *net.UDPAddr, code wire.Code, frame []byte) {
	payload, err := wire.DecodeConnectAck(frame)
	if err != nil {
		c.log.Warn("malformed connect ack", "err", err)
		return
	}
	c.mu.Lock()
	if c.local == nil {
		fieldSize := world.Vec2f{X: float32(payload.FieldWidth), Y: float32(payload.FieldHeight)}
		c.localID = payload.PlayerID
		c.local = world.NewPlayer(payload.PlayerID, "", world.Vec2f{}, fieldSize, 0)
	}
	c.mu.Unlock()

	select {
	case c.connectAcked <- struct{}{}:
	default:
	}
}

func (c *Client) handleServerDisconnect(addr *net.UDPAddr, code wire.Code, frame []byte) {
	c.mu.Lock()
	c.connected = false
	c.synced = false
	c.mu.Unlock()
	c.log.Info("disconnected by server")
}

// Disconnect notifies the server and marks the client's own session ended.
func (c *Client) Disconnect() {
	c.mu.Lock()
	addr := c.serverAddr
	c.connected = false
	c.synced = false
	c.mu.Unlock()
	if addr != nil {
		_ = c.transport.Send(addr, wire.EncodeDisconnect(wire.DisconnectPayload{Reason: wire.DisconnectReasonClient}))
	}
}
