// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/orbfield/agarnet/internal/client"
	"github.com/orbfield/agarnet/internal/config"
	"github.com/orbfield/agarnet/internal/world"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "agarnet-client",
		Short: "Connects to an agarnet server and runs the local-prediction loop headlessly",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			serverAddr, _ := flags.GetString("server")
			name, _ := flags.GetString("name")

			loaded, err := config.LoadClient(configPath, config.Client{Server: serverAddr, Name: name})
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if loaded.Server == "" {
				return fmt.Errorf("no --server given and none configured")
			}

			logger := log.New(os.Stderr)

			conn, err := net.ListenUDP("udp", &net.UDPAddr{})
			if err != nil {
				return fmt.Errorf("opening udp socket: %w", err)
			}
			defer conn.Close()

			c := client.New(conn, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runErr := make(chan error, 1)
			go func() { runErr <- c.Run(ctx) }()

			if err := c.Connect(ctx, loaded.Server, loaded.Name); err != nil {
				return fmt.Errorf("connecting to %s: %w", loaded.Server, err)
			}
			logger.Info("connected", "server", loaded.Server, "name", loaded.Name)

			tickTicker := time.NewTicker(world.TickPeriod)
			defer tickTicker.Stop()
			syncTicker := time.NewTicker(world.ClientSyncInterval)
			defer syncTicker.Stop()

			for {
				select {
				case <-ctx.Done():
					c.Disconnect()
					return nil
				case err := <-runErr:
					return err
				case <-tickTicker.C:
					c.Tick(1.0 / float32(world.SERVER_GAME_REFRESH_RATE))
				case <-syncTicker.C:
					if c.NeedsSync() {
						c.SyncInputs()
					}
					if !c.IsConnected() {
						logger.Warn("lost connection", "reason", c.NotConnectedReason())
						return nil
					}
				}
			}
		},
	}

	flags := cmd.Flags()
	flags.String("server", "", "host:port of the server to connect to")
	flags.String("name", "player", "display name to send in CONNECT")
	flags.StringVar(&configPath, "config", "", "optional YAML config file whose values override flag values")

	return cmd
}
