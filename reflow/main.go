// Command reflow runs a reflow profile on an oven attached through the serial
// I/O bridge, or on the simulator with -mock. The diagnostic stream goes to
// stdout, logs to stderr.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/itohio/goreflow/pkg/bridge"
	"github.com/itohio/goreflow/pkg/config"
	"github.com/itohio/goreflow/pkg/journal"
	"github.com/itohio/goreflow/pkg/oven"
	"github.com/itohio/goreflow/pkg/profile"
	"github.com/itohio/goreflow/pkg/sim"
	"github.com/itohio/goreflow/pkg/thermocouple"
	"github.com/itohio/goreflow/pkg/ws2812"
)

// shutdownGrace bounds how long a cancelled run may take to switch the heater
// off before the hardware connection is closed under it.
const shutdownGrace = 2 * time.Second

// hardware is the set of oven peripherals, real or simulated.
type hardware interface {
	thermocouple.Bus
	oven.Switch
	ws2812.Channel
	Close() error
}

func main() {
	var (
		configFlag    = flag.String("config", "config.yaml", "Configuration file path")
		portFlag      = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		mockFlag      = flag.Bool("mock", false, "Use the simulated oven instead of the serial bridge")
		journalFlag   = flag.String("journal", "", "Run journal database path (overrides config)")
		logLevelFlag  = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
		listPortsFlag = flag.Bool("list-ports", false, "List serial ports and exit")
		initFlag      = flag.Bool("init", false, "Write the effective configuration to -config and exit")
		runsFlag      = flag.Bool("runs", false, "List the runs in the journal and exit")
		runFlag       = flag.String("run", "", "Print the diagnostic rows of a journal run ID and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *journalFlag != "" {
		cfg.Journal.Path = *journalFlag
	}
	if *logLevelFlag != "" {
		cfg.Log.Level = *logLevelFlag
	}

	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)

	if *initFlag {
		if err := cfg.Save(*configFlag); err != nil {
			log.Fatal().Err(err).Msg("failed to save configuration")
		}
		log.Info().Str("path", *configFlag).Msg("configuration written")
		return
	}

	if *runsFlag || *runFlag != "" {
		if err := showJournal(os.Stdout, cfg.Journal.Path, *runFlag); err != nil {
			log.Fatal().Err(err).Msg("failed to read journal")
		}
		return
	}

	if *listPortsFlag {
		ports, err := bridge.Ports()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to list serial ports")
		}
		for _, p := range ports {
			fmt.Println(p.Name)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *mockFlag); err != nil {
		log.Fatal().Err(err).Msg("reflow failed")
	}
}

func run(ctx context.Context, cfg *config.Config, mock bool) error {
	hw, err := openHardware(cfg, mock)
	if err != nil {
		return err
	}
	defer hw.Close()

	sensor := thermocouple.New(hw,
		thermocouple.WithOffsetCompensation(cfg.Sensor.ApplyOffset),
		thermocouple.WithLogger(log.Logger),
	)

	led, err := ws2812.New(hw, cfg.LED.WarmUp)
	if err != nil {
		return fmt.Errorf("failed to initialize status LED: %w", err)
	}

	opts := []oven.Option{
		oven.WithLogger(log.Logger),
		oven.WithRecorder(oven.NewCSVRecorder(os.Stdout)),
	}

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, oven.WithRecorder(j))
		log.Info().Str("path", cfg.Journal.Path).Msg("run journal enabled")
	}

	p := profile.SMD291AX()
	o := oven.New(cfg, p, sensor, hw, led, opts...)

	start, end := p.Domain()
	log.Info().
		Str("profile", p.Name()).
		Float32("domain_start", start).
		Float32("domain_end", end).
		Dur("cooling_time", p.CoolingTime).
		Bool("mock", mock).
		Bool("apply_offset", cfg.Sensor.ApplyOffset).
		Msg("starting reflow")

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	// A board that stopped answering holds the workers in a request;
	// closing the port releases them.
	select {
	case err := <-done:
		return err
	case <-time.After(shutdownGrace):
		log.Warn().Dur("grace", shutdownGrace).Msg("oven did not stop, closing hardware")
		hw.Close()
		return <-done
	}
}

// showJournal lists the journal's runs, or writes one run's cycles as the
// diagnostic stream.
func showJournal(w io.Writer, path, run string) error {
	if path == "" {
		return fmt.Errorf("no journal: set journal.path or -journal")
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	if run == "" {
		runs, err := j.Runs()
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%g\n", r.ID, r.StartedAt.Format(time.RFC3339), r.Profile, r.Offset)
		}
		return nil
	}

	id, err := uuid.Parse(run)
	if err != nil {
		return fmt.Errorf("invalid run ID %q: %w", run, err)
	}
	cycles, err := j.Cycles(id)
	if err != nil {
		return err
	}

	rec := oven.NewCSVRecorder(w)
	for _, c := range cycles {
		if err := rec.Record(c); err != nil {
			return err
		}
	}
	return nil
}

func openHardware(cfg *config.Config, mock bool) (hardware, error) {
	if mock {
		hw := sim.New(&cfg.Mock)
		if err := hw.Connect(); err != nil {
			return nil, fmt.Errorf("failed to start simulator: %w", err)
		}
		return hw, nil
	}

	hw := bridge.New(cfg.Serial.Port, cfg.Serial.BaudRate)
	if err := hw.Connect(); err != nil {
		return nil, err
	}
	return hw, nil
}

func setupLogging(level string, useJSON bool, colors bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
