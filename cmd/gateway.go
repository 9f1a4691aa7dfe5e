package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/helixbot/helixbot/internal/bus"
	"github.com/helixbot/helixbot/internal/channels"
	"github.com/helixbot/helixbot/internal/config"
	"github.com/helixbot/helixbot/internal/container"
	"github.com/helixbot/helixbot/internal/cron"
	"github.com/helixbot/helixbot/internal/watch"
)

var gatewayPort int

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the helixbot gateway server",
	RunE:  runGateway,
}

func init() {
	gatewayCmd.Flags().IntVarP(&gatewayPort, "port", "p", 0, "Override gateway port")
}

func runGateway(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if gatewayPort > 0 {
		cfg.Gateway.Port = gatewayPort
	}

	c, err := container.New(cfg)
	if err != nil {
		return err
	}

	loop := c.AgentLoop()
	b := c.MessageBus()
	cronSvc := c.CronService()

	fmt.Printf("%s Starting helixbot gateway on port %d...\n", logo, cfg.Gateway.Port)

	// Cron jobs run through the agent; delivery pushes the response out on
	// the job's channel.
	cronSvc.SetOnJob(func(ctx context.Context, job cron.CronJob) (string, error) {
		sessionKey := "cron:" + job.ID
		ch := "cli"
		chatID := "direct"
		if job.Payload.Channel != nil && *job.Payload.Channel != "" {
			ch = *job.Payload.Channel
		}
		if job.Payload.To != nil && *job.Payload.To != "" {
			chatID = *job.Payload.To
		}
		resp := loop.ProcessDirect(ctx, job.Payload.Message, sessionKey, ch, chatID)
		if job.Payload.Deliver && job.Payload.To != nil && resp != "" {
			b.PublishOutbound(bus.NewOutboundMessage(bus.Channel(ch), chatID, resp))
		}
		return resp, nil
	})

	// Graceful shutdown context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	channelMgr := channels.NewManager(cfg, b)
	if enabled := channelMgr.EnabledChannels(); len(enabled) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", strings.Join(enabled, ", "))
	}

	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return cronSvc.Start(gctx) })
	g.Go(func() error { return channelMgr.StartAll(gctx) })

	if cfg.Watch.Enabled {
		watcher := watch.NewService(cfg.WorkspacePath(), func(wctx context.Context, content string) error {
			loop.ProcessDirect(wctx, content, "watch:direct", "watch", "direct")
			return nil
		}, time.Duration(cfg.Watch.IntervalMinutes)*time.Minute)
		g.Go(func() error { return watcher.Start(gctx) })
	}

	fmt.Printf("%s Gateway running. Press Ctrl+C to stop.\n", logo)

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "gateway error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
