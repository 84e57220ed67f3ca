// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/location_publisher/internal/app"
	"github.com/relabs-tech/location_publisher/internal/config"
	"github.com/relabs-tech/location_publisher/internal/location"
	"github.com/relabs-tech/location_publisher/internal/message"
)

func newRootCmd() *cobra.Command {
	var cfgPath string

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Publish device location to the MQTT broker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return app.RunPublisher(ctx, cfg)
		},
	}

	root := &cobra.Command{
		Use:           "location_publisher",
		Short:         "Location publisher (location fixes to MQTT)",
		RunE:          runCmd.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "location_publisher.yaml", "configuration file")

	consoleCmd := &cobra.Command{
		Use:   "console",
		Short: "Print location messages seen on the broker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return app.RunConsole(ctx, cfg, cmd.OutOrStdout())
		},
	}

	root.AddCommand(runCmd, consoleCmd, newEncodeCmd(time.Now))
	root.SetContext(context.Background())
	return root
}

func newEncodeCmd(now func() time.Time) *cobra.Command {
	var (
		studentID string
		lat, lon  float64
		speed     float64
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the payload published for one fix",
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := message.Encode(location.Reading{
				Latitude:  lat,
				Longitude: lon,
				Speed:     speed,
			}, studentID, now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return err
		},
	}
	cmd.Flags().StringVar(&studentID, "id", "", "student id")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude in decimal degrees")
	cmd.Flags().Float64Var(&speed, "speed", 0, "ground speed in m/s")
	cmd.MarkFlagRequired("id") //nolint:errcheck
	return cmd
}
