// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/orbfield/agarnet/internal/config"
	"github.com/orbfield/agarnet/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	def := server.DefaultConfig()
	var configPath string
	var statusAddr string

	cmd := &cobra.Command{
		Use:   "agarnet-server",
		Short: "Runs the authoritative agarnet simulation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			port, _ := flags.GetInt("port")
			playerLimit, _ := flags.GetInt("player-limit")
			botCount, _ := flags.GetInt("bot-count")
			targetOrbCount, _ := flags.GetInt("target-orb-count")
			mapWidth, _ := flags.GetFloat32("map-width")
			mapHeight, _ := flags.GetFloat32("map-height")

			loaded, err := config.LoadServer(configPath, config.Server{
				Port:           port,
				PlayerLimit:    playerLimit,
				BotCount:       botCount,
				TargetOrbCount: targetOrbCount,
				MapWidth:       mapWidth,
				MapHeight:      mapHeight,
				StatusAddr:     statusAddr,
			})
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			logger := log.New(os.Stderr)
			logger.SetLevel(log.InfoLevel)

			conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: loaded.Port})
			if err != nil {
				return fmt.Errorf("listening on udp port %d: %w", loaded.Port, err)
			}
			defer conn.Close()

			hub := server.New(server.Config{
				PlayerLimit:    loaded.PlayerLimit,
				BotCount:       loaded.BotCount,
				TargetOrbCount: loaded.TargetOrbCount,
				MapWidth:       loaded.MapWidth,
				MapHeight:      loaded.MapHeight,
				Port:           loaded.Port,
			}, conn, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if loaded.StatusAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/status", hub.StatusHandler())
				statusSrv := &http.Server{Addr: loaded.StatusAddr, Handler: mux}
				go func() {
					if err := statusSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("status server failed", "err", err)
					}
				}()
				go func() {
					<-ctx.Done()
					_ = statusSrv.Close()
				}()
			}

			return hub.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.Int("port", def.Port, "UDP port to listen on")
	flags.Int("player-limit", def.PlayerLimit, "maximum concurrent human players")
	flags.Int("bot-count", def.BotCount, "number of bot peers to keep spawned")
	flags.Int("target-orb-count", def.TargetOrbCount, "orb population to replenish toward")
	flags.Float32("map-width", def.MapWidth, "playable field width")
	flags.Float32("map-height", def.MapHeight, "playable field height")
	flags.StringVar(&statusAddr, "status-addr", "", "address to serve /status on, e.g. 127.0.0.1:8081 (empty disables it)")
	flags.StringVar(&configPath, "config", "", "optional YAML config file whose values override flag values")

	return cmd
}
