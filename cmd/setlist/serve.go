package main

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/setlistapp/setlist/internal/analytics"
	"github.com/setlistapp/setlist/internal/api"
	"github.com/setlistapp/setlist/internal/config"
	"github.com/setlistapp/setlist/internal/db"
	"github.com/setlistapp/setlist/internal/otp"
	"github.com/setlistapp/setlist/internal/sms"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Setlist API server",
		Long:  "Connects to the datastore, migrates tables, and serves the OTP, analytics and sync endpoints until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "setlist.yaml", "path to Setlist config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	provider, err := smsProvider(cfg.SMS)
	if err != nil {
		return err
	}
	if provider == nil {
		fmt.Fprintln(out, "No SMS provider configured; verification codes are returned inline")
	}

	gate, err := otp.NewGate(otp.GateOpts{
		DB:            gormDB,
		Provider:      provider,
		CodeTTL:       cfg.OTP.CodeTTL(),
		CountryPrefix: cfg.SMS.CountryPrefix,
	})
	if err != nil {
		return err
	}

	sched := startJobs(gormDB, gate)
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return api.Start(ctx, api.StartOpts{
		DB:   gormDB,
		Gate: gate,
		Port: cfg.Server.Port,
		Out:  out,
	})
}

// smsProvider builds the configured delivery provider; nil means codes are
// handed back inline (local verification).
func smsProvider(cfg config.SMSConfig) (sms.Provider, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "slack":
		return sms.NewSlackProvider(sms.SlackOpts{
			Token:   cfg.SlackToken,
			Channel: cfg.SlackChannel,
		})
	case "command":
		return sms.NewCommandProvider(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}

// startJobs schedules the recurring maintenance work: expired-session
// purges every ten minutes and an activity digest every morning.
func startJobs(gormDB *gorm.DB, gate *otp.Gate) *cron.Cron {
	sched := cron.New()

	sched.AddFunc("@every 10m", func() {
		n, err := gate.PurgeExpired()
		if err != nil {
			log.Printf("serve: purge expired sessions: %v", err)
			return
		}
		if n > 0 {
			log.Printf("serve: purged %d expired verification sessions", n)
		}
	})

	sched.AddFunc("0 7 * * *", func() {
		report, err := analytics.BuildDailyDigest(gormDB)
		if err != nil {
			log.Printf("serve: daily digest: %v", err)
			return
		}
		if report == nil {
			return
		}
		log.Print(analytics.FormatDaily(report))
	})

	sched.Start()
	return sched
}
