package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/hamed0406/sourcewatch/internal/config"
	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/notify"
)

func preflightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Validate environment and sources before starting",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if sourcesPath != "" {
				cfg.SourcesFile = sourcesPath
			}
			if err := preflight(os.Stdout, os.Stderr, cfg); err != nil {
				return err
			}
			return nil
		},
	}
}

// preflight prints one ✔/⚠/✖ line per check and returns every ✖ combined.
func preflight(out, errOut io.Writer, cfg config.Config) error {
	var errs error
	fail := func(msg string) {
		fmt.Fprintln(errOut, "✖", msg)
		errs = multierr.Append(errs, fmt.Errorf("%s", msg))
	}
	warn := func(msg string) { fmt.Fprintln(errOut, "⚠", msg) }
	ok := func(msg string) { fmt.Fprintln(out, "✔", msg) }

	sources, err := config.LoadSources(cfg.SourcesFile, cfg)
	if err != nil {
		for _, e := range multierr.Errors(err) {
			fail(e.Error())
		}
		return errs
	}
	ok(fmt.Sprintf("%s: %d sources", cfg.SourcesFile, len(sources)))

	var tg *notify.Telegram
	if cfg.TelegramToken != "" {
		if tg, err = notify.NewTelegram(cfg.TelegramToken, cfg.TelegramAPIURL); err != nil {
			fail("TELEGRAM_BOT_TOKEN rejected: " + err.Error())
		}
	} else if len(cfg.TelegramChats) > 0 {
		warn("TELEGRAM_CHATS set but TELEGRAM_BOT_TOKEN is empty; telegram channels are ignored.")
	}
	router := notify.NewRouter(notify.RouterConfig{
		Slack:          cfg.SlackWebhooks,
		Telegram:       cfg.TelegramChats,
		DefaultChannel: cfg.DefaultChannel,
	}, tg, nil)
	if len(router.Channels()) == 0 {
		fail("no notification endpoints: set SLACK_WEBHOOK_URLS or TELEGRAM_BOT_TOKEN with TELEGRAM_CHATS.")
	}

	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		if got, found := router.Resolve(src.Channel); !found {
			fail(fmt.Sprintf("source %s: channel %q has no endpoint and no default.", src.ID, src.Channel))
		} else if got != notify.NormalizeChannel(src.Channel) {
			warn(fmt.Sprintf("source %s: channel %q falls back to %q.", src.ID, src.Channel, got))
		}
		if src.Kind == domain.KindItemFeed && src.Jitter.Max == 0 && src.Fetch.Type == domain.FetchHTML {
			warn(fmt.Sprintf("source %s: no jitter on a scraped feed; bot detection is more likely.", src.ID))
		}
	}

	switch cfg.StateBackend {
	case "postgres":
		if cfg.DatabaseURL == "" {
			fail("STATE_BACKEND=postgres but DATABASE_URL is empty.")
		} else {
			ok("DATABASE_URL present")
		}
	case "file":
		ok("state in " + cfg.StateDir)
	case "sqlite":
		ok("state in " + cfg.SQLitePath)
	case "memory":
		warn("STATE_BACKEND=memory; every restart is a first run.")
	default:
		fail(fmt.Sprintf("unknown STATE_BACKEND %q", cfg.StateBackend))
	}

	if cfg.StatusAddr != "" {
		ok("STATUS_ADDR=" + cfg.StatusAddr)
		if len(cfg.AdminAPIKeys) == 0 {
			warn("ADMIN_API_KEYS is empty; anyone reaching STATUS_ADDR can trigger ticks.")
		}
		if len(cfg.PublicAPIKeys) == 0 {
			warn("PUBLIC_API_KEYS is empty; read routes are open.")
		}
		if len(cfg.AllowedOrigins) == 0 {
			warn("ALLOWED_ORIGINS empty; CORS allows every origin.")
		} else {
			ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
		}
	}

	if errs == nil {
		ok("preflight passed")
	}
	return errs
}
