package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"evcal/internal/api"
	"evcal/internal/config"
	"evcal/internal/ics"
	appLog "evcal/internal/log"
	"evcal/internal/notify"
	"evcal/internal/recurrence"
	"evcal/internal/schedule"
	"evcal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	mode       string
	listen     string
	apiBaseURL string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// CLI flags override the config file when set.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.apiBaseURL != "" {
		conf.APIBaseURL = flags.apiBaseURL
	}

	appLog.Info("evcal starting",
		"version", version,
		"mode", flags.mode,
		"listen", conf.Listen,
		"api_base_url", conf.APIBaseURL,
		"timezone", conf.Timezone,
		"holiday_sources", len(conf.Holidays),
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch flags.mode {
	case "server":
		err = runServer(ctx, conf)
	case "agent":
		err = runAgent(ctx, conf, flags.once)
	default:
		err = fmt.Errorf("unknown mode %q (want server or agent)", flags.mode)
	}
	if err != nil {
		appLog.Error("evcal stopped with error", err, "mode", flags.mode)
		os.Exit(1)
	}
	appLog.Info("evcal exiting")
}

// runServer serves the event API and keeps the holiday feeds fresh.
func runServer(ctx context.Context, conf *config.Config) error {
	sources := make([]ics.Source, 0, len(conf.Holidays))
	for _, h := range conf.Holidays {
		if h.URL == "" {
			continue
		}
		id := h.ID
		if id == "" {
			id = h.Name
		}
		sources = append(sources, ics.Source{ID: id, URL: h.URL, Name: h.Name})
	}

	holidays := ics.NewHolidayCalendar(ics.NewFetcher(conf.ICSCacheDir, 0), sources, conf.Location())
	if err := holidays.Refresh(ctx); err != nil {
		// 공휴일 피드가 없어도 API는 동작한다.
		appLog.Error("initial holiday refresh failed", err)
	}

	c := cron.New(cron.WithLocation(conf.Location()))
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		if err := holidays.Refresh(ctx); err != nil {
			appLog.Error("holiday refresh failed", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", conf.RefreshCron, err)
	}
	c.Start()
	defer c.Stop()

	srv := web.NewServer(conf, web.NewStore(), holidays)
	return srv.ListenAndServe(ctx)
}

// runAgent drives the schedule controller against a running server and
// logs reminders as they come due.
func runAgent(ctx context.Context, conf *config.Config, once bool) error {
	client := api.NewClient(conf.APIBaseURL, 0)
	ctrl := schedule.NewController(client, schedule.LogNotifier{}, schedule.Options{
		Recurrence: recurrence.Options{
			MaxOccurrences:       conf.Repeat.MaxOccurrences,
			OpenEndedHorizonDays: conf.Repeat.OpenEndedHorizonDays,
		},
	})
	tracker := notify.NewTracker(conf.Location())

	checkReminders := func() {
		for _, item := range tracker.Check(ctrl.Events(), time.Now()) {
			appLog.Info("reminder", "id", item.ID, "message", item.Message)
			tracker.Dismiss(item.ID)
		}
	}

	if err := ctrl.Init(ctx); err != nil && once {
		return err
	}
	if once {
		checkReminders()
		return nil
	}

	c := cron.New(cron.WithLocation(conf.Location()))
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		_ = ctrl.Fetch(ctx)
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", conf.RefreshCron, err)
	}
	if _, err := c.AddFunc(conf.NotifyCron, checkReminders); err != nil {
		return fmt.Errorf("invalid notify schedule %q: %w", conf.NotifyCron, err)
	}
	c.Start()
	checkReminders()

	<-ctx.Done()
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		return errors.New("timed out waiting for scheduled jobs")
	}
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/evcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.mode, "mode", "server", "Run mode: server (event API) or agent (sync + reminders)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.apiBaseURL, "api", "", "API base URL for agent mode (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Agent mode: fetch events, check reminders once and exit")

	flag.Parse()

	return cfg
}
