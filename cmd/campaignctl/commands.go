package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/fastygo/groupbuy/domain"
)

// withApp builds the application for one command and tears it down
// afterwards, which waits for in-flight remote settlement. When replay is
// set, writes left in the outbox by earlier runs are delivered first.
func withApp(cmd *cobra.Command, replay bool, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer a.close()

	if replay {
		a.replayOutbox(ctx)
	}
	return fn(ctx, a)
}

func (a *app) replayOutbox(ctx context.Context) {
	if a.processor == nil || a.processor.Size() == 0 {
		return
	}
	if status := a.monitor.Refresh(ctx); !status.Online {
		a.logger.Debug("remote offline, outbox replay postponed", zap.Int("pending", status.OutboxSize))
		return
	}
	stats, err := a.processor.Drain(ctx)
	if err != nil {
		a.logger.Warn("outbox replay failed", zap.Error(err))
		return
	}
	a.logger.Info("outbox replayed",
		zap.Int("delivered", stats.Delivered),
		zap.Int("dropped", stats.Dropped),
		zap.Int("remaining", stats.Remaining))
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			campaigns, err := a.engine.List(ctx)
			if err != nil {
				return err
			}
			return printCampaigns(cmd.OutOrStdout(), campaigns, time.Now())
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one campaign with its progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			c, err := a.engine.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printCampaign(cmd.OutOrStdout(), c, time.Now())
		})
	},
}

// campaignFlags binds the editable campaign fields to a command.
type campaignFlags struct {
	name         string
	description  string
	category     string
	imageURL     string
	regularPrice float64
	groupPrice   float64
	required     int
	expires      string
}

func (f *campaignFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "product name")
	fs.StringVar(&f.description, "description", "", "product description")
	fs.StringVar(&f.category, "category", "", "product category")
	fs.StringVar(&f.imageURL, "image", "", "product image URL")
	fs.Float64Var(&f.regularPrice, "regular-price", 0, "regular unit price")
	fs.Float64Var(&f.groupPrice, "group-price", 0, "unit price once the threshold is reached")
	fs.IntVar(&f.required, "required", 0, "participants needed to unlock the group price")
	fs.StringVar(&f.expires, "expires", "", "deadline as RFC3339 time or a duration from now, e.g. 72h")
}

func (f *campaignFlags) patch(fs *pflag.FlagSet, now time.Time) (domain.Patch, error) {
	var p domain.Patch
	if fs.Changed("name") {
		p.ProductName = &f.name
	}
	if fs.Changed("description") {
		p.Description = &f.description
	}
	if fs.Changed("category") {
		p.Category = &f.category
	}
	if fs.Changed("image") {
		p.ImageURL = &f.imageURL
	}
	if fs.Changed("regular-price") {
		p.RegularPrice = &f.regularPrice
	}
	if fs.Changed("group-price") {
		p.GroupPrice = &f.groupPrice
	}
	if fs.Changed("required") {
		p.RequiredParticipants = &f.required
	}
	if fs.Changed("expires") {
		expires, err := parseDeadline(f.expires, now)
		if err != nil {
			return domain.Patch{}, err
		}
		p.ExpiresAt = &expires
	}
	return p, nil
}

// parseDeadline accepts a duration from now or an RFC3339 timestamp. The
// result is cut to microseconds, the precision the campaign database keeps.
func parseDeadline(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if d, err := time.ParseDuration(raw); err == nil {
		return now.Add(d).UTC().Truncate(time.Microsecond), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, domain.NewValidationError("invalid deadline %q", raw)
	}
	return t.UTC().Truncate(time.Microsecond), nil
}

var createFlags campaignFlags

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a campaign",
	Long: `Creates a campaign. Fields that are not given fall back to the demo
campaign, so "campaignctl create" alone creates the demo headphones offer.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		p, err := createFlags.patch(cmd.Flags(), now)
		if err != nil {
			return err
		}
		in := domain.DefaultCampaignInput()
		applyInput(&in, p)

		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			c, err := a.engine.Create(ctx, in)
			if err != nil {
				return err
			}
			return printCampaign(cmd.OutOrStdout(), c, now)
		})
	},
}

func applyInput(in *domain.CreateInput, p domain.Patch) {
	if p.ProductName != nil {
		in.ProductName = *p.ProductName
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.Category != nil {
		in.Category = *p.Category
	}
	if p.ImageURL != nil {
		in.ImageURL = *p.ImageURL
	}
	if p.RegularPrice != nil {
		in.RegularPrice = *p.RegularPrice
	}
	if p.GroupPrice != nil {
		in.GroupPrice = *p.GroupPrice
	}
	if p.RequiredParticipants != nil {
		in.RequiredParticipants = *p.RequiredParticipants
	}
	in.ExpiresAt = p.ExpiresAt
}

var updateFlags campaignFlags

var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Change campaign fields; unset flags keep their values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		p, err := updateFlags.patch(cmd.Flags(), now)
		if err != nil {
			return err
		}
		if p.IsEmpty() {
			return fmt.Errorf("nothing to update, pass at least one field flag")
		}
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			c, err := a.engine.Update(ctx, args[0], p)
			if err != nil {
				return err
			}
			return printCampaign(cmd.OutOrStdout(), c, now)
		})
	},
}

var duplicateCmd = &cobra.Command{
	Use:   "duplicate [id]",
	Short: "Copy a campaign with a fresh deadline of the same length",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			c, err := a.engine.Duplicate(ctx, args[0])
			if err != nil {
				return err
			}
			return printCampaign(cmd.OutOrStdout(), c, time.Now())
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [id] [active|paused|completed|expired]",
	Short: "Set the campaign status explicitly",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := domain.ParseStatus(args[1])
		if err != nil {
			return err
		}
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			c, err := a.engine.ChangeStatus(ctx, args[0], status)
			if err != nil {
				return err
			}
			return printCampaign(cmd.OutOrStdout(), c, time.Now())
		})
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove [id]",
	Aliases: []string{"rm", "delete"},
	Short:   "Delete a campaign",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			removed, err := a.engine.Remove(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"id": args[0], "removed": removed})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "campaign %s removed\n", args[0])
			return nil
		})
	},
}

var joinCmd = &cobra.Command{
	Use:   "join [id]",
	Short: "Join a campaign as the next participant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			c, err := a.engine.Join(ctx, args[0])
			if err != nil {
				return err
			}
			return printCampaign(cmd.OutOrStdout(), c, time.Now())
		})
	},
}

func init() {
	createFlags.bind(createCmd.Flags())
	updateFlags.bind(updateCmd.Flags())
}
