// PM2 Watchdog - restart-count monitor for pm2-managed services
//
// This is the main entry point for the watchdog daemon. Every configured
// interval it asks pm2 for the restart count of each monitored process and
// sends one alert listing every process over the configured threshold.
//
// Optional integrations:
//   - MQTT: alerts and online/offline status published to a broker
//   - InfluxDB: restart counts recorded as time series
//   - HTTP: read-only status and health API
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/pm2-watchdog/internal/api"
	"github.com/nerrad567/pm2-watchdog/internal/infrastructure/config"
	"github.com/nerrad567/pm2-watchdog/internal/infrastructure/influxdb"
	"github.com/nerrad567/pm2-watchdog/internal/infrastructure/logging"
	"github.com/nerrad567/pm2-watchdog/internal/infrastructure/mqtt"
	"github.com/nerrad567/pm2-watchdog/internal/notify"
	"github.com/nerrad567/pm2-watchdog/internal/process"
	"github.com/nerrad567/pm2-watchdog/internal/shutdown"
	"github.com/nerrad567/pm2-watchdog/internal/watchdog"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// Default configuration file path
	defaultConfigPath = "configs/config.yaml"

	// configEnvVar overrides the default path when --config is not given
	configEnvVar = "WATCHDOG_CONFIG"
)

// checkInterval returns the time between check cycles. Tests replace it to
// run cycles in milliseconds.
var checkInterval = func(cfg *config.Config) time.Duration {
	return cfg.CheckInterval()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Exit); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Errors during startup are returned so main can exit with status 1. Once
// the scheduler is running, every exit goes through the shutdown
// coordinator, which calls exit after releasing all components.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - args: Command-line arguments without the program name
//   - stdout: Destination for --version output
//   - exit: Terminates the process with a status code
//
// Returns:
//   - error: nil after a coordinated shutdown, or the startup failure
func run(ctx context.Context, args []string, stdout io.Writer, exit func(code int)) error {
	flags := pflag.NewFlagSet("pm2-watchdog", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	configFlag := flags.StringP("config", "c", "", "path to the YAML configuration file")
	showVersion := flags.BoolP("version", "v", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	if *showVersion {
		fmt.Fprintf(stdout, "pm2-watchdog %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting pm2 watchdog",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath(*configFlag)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	coordinator := shutdown.NewCoordinator(
		shutdown.WithLogger(log),
		shutdown.WithExit(exit),
	)

	// Components are released in reverse creation order if startup fails
	// before the coordinator takes ownership.
	var opened []shutdown.Releaser
	abort := func(err error) error {
		for i := len(opened) - 1; i >= 0; i-- {
			if releaseErr := opened[i].Release(context.Background()); releaseErr != nil {
				log.Error("error releasing component", "error", releaseErr)
			}
		}
		_ = log.Close()
		return err
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, version)
		if err != nil {
			return abort(fmt.Errorf("connecting to MQTT: %w", err))
		}
		opened = append(opened, mqttClient)
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return abort(fmt.Errorf("connecting to InfluxDB: %w", err))
		}
		opened = append(opened, influxClient)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	mailer, err := newMailer(cfg)
	if err != nil {
		return abort(err)
	}
	opened = append(opened, mailer)

	notifiers := []notify.Notifier{mailer}
	if mqttClient != nil {
		notifiers = append(notifiers, notify.NewMQTTNotifier(
			mqttClient,
			mqttClient.Topics().Alert(),
			byte(cfg.MQTT.QoS),
			cfg.Monitor.MaxRestarts,
		))
	}
	notifier := notify.NewFanout(notifiers...)
	log.Info("notifier ready", "channels", notifier.Name(), "recipients", len(cfg.Email.To))

	inspector := process.NewPM2Inspector(process.PM2Config{
		Binary:  cfg.PM2.Binary,
		Home:    cfg.PM2.Home,
		Timeout: cfg.CommandTimeout(),
	})
	inspector.SetLogger(log)
	if pingErr := inspector.Ping(ctx); pingErr != nil {
		return abort(fmt.Errorf("pm2 unavailable: %w", pingErr))
	}

	log.Info(fmt.Sprintf("Loaded %d processes", len(cfg.Monitor.Processes)),
		"processes", cfg.Monitor.Processes,
	)

	policy, err := watchdog.ParsePolicy(cfg.Monitor.ThresholdPolicy)
	if err != nil {
		return abort(err)
	}

	state := watchdog.NewState()
	checkerCfg := watchdog.CheckerConfig{
		Processes: cfg.Monitor.Processes,
		Threshold: watchdog.Threshold{Max: cfg.Monitor.MaxRestarts, Policy: policy},
		Inspector: inspector,
		Notifier:  notifier,
		State:     state,
		Logger:    log,
	}
	if influxClient != nil {
		checkerCfg.Recorder = influxClient
	}
	checker, err := watchdog.NewChecker(checkerCfg)
	if err != nil {
		return abort(fmt.Errorf("creating checker: %w", err))
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:     cfg.API,
			Monitor:    cfg.Monitor,
			Logger:     log,
			Status:     state,
			Processes:  checker,
			Components: healthComponents(inspector, mqttClient, influxClient),
			Version:    version,
		})
		if err != nil {
			return abort(fmt.Errorf("creating API server: %w", err))
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return abort(fmt.Errorf("starting API server: %w", startErr))
		}
		opened = append(opened, apiServer)
	}

	scheduler, err := watchdog.NewScheduler(watchdog.SchedulerConfig{
		Interval: checkInterval(cfg),
		State:    state,
		Logger:   log,
	})
	if err != nil {
		return abort(fmt.Errorf("creating scheduler: %w", err))
	}
	if startErr := scheduler.Start(ctx, checker.RunOnce); startErr != nil {
		return abort(fmt.Errorf("starting scheduler: %w", startErr))
	}

	if regErr := registerComponents(coordinator, scheduler, apiServer, mailer, influxClient, mqttClient, log); regErr != nil {
		opened = append(opened, scheduler)
		return abort(regErr)
	}

	log.Info("initialisation complete, monitoring",
		"interval", checkInterval(cfg).String(),
		"max_restarts", cfg.Monitor.MaxRestarts,
		"policy", string(policy),
	)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
		coordinator.Shutdown(0)
	case cycleErr := <-scheduler.Err():
		log.Error("fatal check cycle error, shutting down", "error", cycleErr)
		coordinator.Shutdown(1)
	}

	return nil
}

// getConfigPath returns the configuration file path.
// Uses the --config flag if set, then WATCHDOG_CONFIG, otherwise default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// newMailer builds the email notifier from the email and smtp sections.
func newMailer(cfg *config.Config) (*notify.Mailer, error) {
	templates, err := notify.NewTemplates(cfg.Email.SubjectTemplate, cfg.Email.BodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing email templates: %w", err)
	}

	mailer, err := notify.NewMailer(notify.MailConfig{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Password:    cfg.Email.Password,
		From:        cfg.Email.From,
		To:          cfg.Email.To,
		TLSPolicy:   cfg.SMTP.TLSPolicy,
		Timeout:     cfg.SMTPTimeout(),
		MaxRestarts: cfg.Monitor.MaxRestarts,
	}, templates)
	if err != nil {
		return nil, fmt.Errorf("creating mailer: %w", err)
	}
	return mailer, nil
}

// healthComponents collects the dependencies reported on /health.
//
// Parameters:
//   - inspector: pm2 inspector, always present
//   - mqttClient: MQTT client (may be nil if disabled)
//   - influxClient: InfluxDB client (may be nil if disabled)
//
// Returns:
//   - map[string]api.HealthChecker: Checkers keyed by component name
func healthComponents(inspector *process.PM2Inspector, mqttClient *mqtt.Client, influxClient *influxdb.Client) map[string]api.HealthChecker {
	components := map[string]api.HealthChecker{
		"pm2": api.HealthCheckFunc(inspector.Ping),
	}
	if mqttClient != nil {
		components["mqtt"] = mqttClient
	}
	if influxClient != nil {
		components["influxdb"] = influxClient
	}
	return components
}

// registerComponents hands every running component to the coordinator.
// The scheduler goes first so no cycle starts while the rest shut down,
// and the logger goes last so every release is still logged.
func registerComponents(
	coordinator *shutdown.Coordinator,
	scheduler *watchdog.Scheduler,
	apiServer *api.Server,
	mailer *notify.Mailer,
	influxClient *influxdb.Client,
	mqttClient *mqtt.Client,
	log *logging.Logger,
) error {
	type component struct {
		name     string
		releaser shutdown.Releaser
	}

	components := []component{{"scheduler", scheduler}}
	if apiServer != nil {
		components = append(components, component{"api", apiServer})
	}
	components = append(components, component{"mailer", mailer})
	if influxClient != nil {
		components = append(components, component{"influxdb", influxClient})
	}
	if mqttClient != nil {
		components = append(components, component{"mqtt", mqttClient})
	}
	components = append(components, component{"logger", log})

	for _, c := range components {
		if err := coordinator.Register(c.name, c.releaser); err != nil {
			return fmt.Errorf("registering %s: %w", c.name, err)
		}
	}
	return nil
}
