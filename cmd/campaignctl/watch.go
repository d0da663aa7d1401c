package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/internal/infrastructure/kafka"
	"github.com/fastygo/groupbuy/internal/services"
	"github.com/fastygo/groupbuy/internal/services/refresh"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh the campaign list periodically until interrupted",
	Long: `Lists campaigns every REFRESH_INTERVAL (30s by default) and reprints the
table. The outbox processor and the connection monitor run in the
background, so deferred writes are delivered as soon as the remote is back.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			a.monitor.Start()
			if a.processor != nil {
				a.processor.Start()
				a.manager.Register("outbox_processor", func(ctx context.Context) error {
					a.processor.Stop(ctx)
					return nil
				})
			}

			scheduler := refresh.New(a.engine, refresh.Config{
				Interval: a.cfg.Refresh.Interval,
				Tick:     a.cfg.Refresh.Tick,
			}, a.logger)
			updates, unsubscribe := scheduler.Subscribe()
			defer unsubscribe()

			scheduler.Start(ctx)
			defer scheduler.Stop()

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case snap, ok := <-updates:
					if !ok {
						return nil
					}
					if snap.Err != nil {
						a.logger.Warn("refresh failed", zap.Error(snap.Err))
						continue
					}
					if !jsonOutput {
						fmt.Fprintf(out, "\n%s  %d campaigns, next refresh in %s\n",
							mutedStyle.Render(snap.FetchedAt.Local().Format(time.TimeOnly)),
							len(snap.Campaigns),
							scheduler.NextRefreshIn())
					}
					if err := printCampaigns(out, snap.Campaigns, snap.FetchedAt); err != nil {
						return err
					}
				}
			}
		})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Deliver writes waiting in the outbox",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			if a.processor == nil {
				return errors.New("outbox is disabled (OUTBOX_ENABLED=false)")
			}

			status := a.monitor.Refresh(ctx)
			stats := services.DrainStats{Remaining: status.OutboxSize}
			if status.Online {
				var err error
				if stats, err = a.processor.Drain(ctx); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, struct {
					Online bool `json:"online"`
					services.DrainStats
				}{status.Online, stats})
			}
			if !status.Online {
				fmt.Fprintf(out, "remote offline, %d writes still pending\n", stats.Remaining)
				return nil
			}
			fmt.Fprintf(out, "delivered %d, requeued %d, dropped %d, skipped %d, %d remaining\n",
				stats.Delivered, stats.Requeued, stats.Dropped, stats.Skipped, stats.Remaining)
			return nil
		})
	},
}

var eventsGroup string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow sync events published to Kafka",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Kafka.Enabled() {
			return errors.New("kafka is not configured (set KAFKA_BROKERS)")
		}
		out := cmd.OutOrStdout()
		return kafka.Consume(cmd.Context(), cfg.Kafka.Brokers, cfg.Kafka.Topic, eventsGroup, appLogger, func(ev domain.SyncEvent) error {
			if jsonOutput {
				return writeJSON(out, ev)
			}
			line := fmt.Sprintf("%s  %-24s %s %s", ev.CreatedAt.Local().Format(time.DateTime), ev.Kind, ev.CampaignID, ev.Operation)
			if ev.Error != "" {
				line += "  " + mutedStyle.Render(ev.Error)
			}
			_, err := fmt.Fprintln(out, line)
			return err
		})
	},
}

func init() {
	eventsCmd.Flags().StringVar(&eventsGroup, "group", "", "consumer group id; empty reads the topic without committing offsets")
}
