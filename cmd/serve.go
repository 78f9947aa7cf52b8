// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"featidx/internal/audio"
	"featidx/internal/feature"
	applog "featidx/internal/log"
	"featidx/internal/transport"
	"featidx/internal/transport/udp"

	"github.com/spf13/cobra"
)

// statsInterval is how often serve pushes statistics to observers.
const statsInterval = time.Second

func newServeCommand(opts *options) *cobra.Command {
	var (
		udpTarget string
		wsAddress string
	)
	cmd := &cobra.Command{
		Use:   "serve <file>",
		Short: "Analyse an audio file and stream its frames and statistics",
		Long: `Analyse an audio file and publish the result until interrupted.

Spectral frames are sent as UDP packets when transport.udp_enabled is set or
--udp is given. Feature statistics and modified regions are broadcast as JSON
to WebSocket clients on /ws when transport.ws_enabled is set or --ws is given,
and logged otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc := &opts.cfg.Transport
			if udpTarget != "" {
				tc.UDPEnabled, tc.UDPTargetAddress = true, udpTarget
			}
			if wsAddress != "" {
				tc.WSEnabled, tc.WSAddress = true, wsAddress
			}
			if err := opts.cfg.Validate(); err != nil {
				return err
			}

			engine, err := opts.loadEngine(cmd.Context(), args[0], feature.DimVolume|feature.DimPan)
			if err != nil {
				return err
			}
			frames, err := engine.Analyze()
			if err != nil {
				return err
			}
			applog.Infof("serve: %s analysed into %d frames", args[0], frames)

			if tc.UDPEnabled {
				sender, err := udp.NewSender(tc.UDPTargetAddress)
				if err != nil {
					return err
				}
				publisher, err := udp.NewFramePublisher(tc.UDPSendInterval, sender, engine)
				if err != nil {
					sender.Close()
					return err
				}
				publisher.Start()
				defer publisher.Close()
			}

			var observers transport.Transport
			if tc.WSEnabled {
				wst := transport.NewWebSocketTransport(tc.WSAddress)
				if err := wst.Start(); err != nil {
					wst.Close()
					return fmt.Errorf("failed to start WebSocket server: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "WebSocket clients: ws://%s/ws\n", wst.Addr())
				observers = wst
			} else {
				observers = transport.NewLoggingTransport()
			}
			defer observers.Close()

			return publishStatistics(cmd, engine, observers, filepath.Base(args[0]))
		},
	}
	cmd.Flags().StringVar(&udpTarget, "udp", "", "Send spectral frames to this UDP address")
	cmd.Flags().StringVar(&wsAddress, "ws", "", "Serve statistics to WebSocket clients on this address")
	return cmd
}

// publishStatistics sends statistics and regions to t every statsInterval
// until the command context is done.
func publishStatistics(cmd *cobra.Command, engine *audio.Engine, t transport.Transport, source string) error {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		stats, err := engine.Statistics()
		if err != nil {
			return err
		}
		if err := t.Send(transport.NewStatisticsMessage(source, engine.SampleRate(), stats)); err != nil {
			return err
		}
		if d, err := engine.Features(); err == nil {
			if err := t.Send(transport.NewRegionsMessage(d.Regions())); err != nil {
				return err
			}
		}

		select {
		case <-cmd.Context().Done():
			applog.Infof("serve: shutting down")
			return nil
		case <-ticker.C:
		}
	}
}
