// Command smarthome-node runs the climate, motion and remote-command control
// loop of a smart-home node and reports over MQTT and HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/smarthome-node/internal/actuator"
	"github.com/sweeney/smarthome-node/internal/automation"
	"github.com/sweeney/smarthome-node/internal/config"
	"github.com/sweeney/smarthome-node/internal/connectivity"
	"github.com/sweeney/smarthome-node/internal/gpio"
	"github.com/sweeney/smarthome-node/internal/log"
	"github.com/sweeney/smarthome-node/internal/metrics"
	"github.com/sweeney/smarthome-node/internal/mqtt"
	"github.com/sweeney/smarthome-node/internal/network"
	"github.com/sweeney/smarthome-node/internal/sensor"
	"github.com/sweeney/smarthome-node/internal/status"
	"github.com/sweeney/smarthome-node/internal/store"
	"github.com/sweeney/smarthome-node/internal/web"
)

func main() {
	ctx, cancel := signalContext()
	defer cancel(nil)

	if err := newCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM with the signal name as
// the cause, which ends up as the SHUTDOWN reason.
func signalContext() (context.Context, context.CancelCauseFunc) {
	ctx, cancel := context.WithCancelCause(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigCh:
			cancel(errors.New(signalName(s)))
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func newCommand() *cobra.Command {
	var (
		configFile   string
		envFile      string
		printReading bool
	)

	cmd := &cobra.Command{
		Use:          "smarthome-node",
		Short:        "Smart-home control node",
		Long:         "smarthome-node reads a DHT22 and a PIR sensor, drives a relay, an RGB LED and a buzzer, and exchanges telemetry, alerts and commands with an MQTT broker.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Load(cmd.Flags(), configFile, envFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), opts, printReading, cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&configFile, "config", "", "YAML config file.")
	fs.StringVar(&envFile, "env-file", ".env", "Optional .env file with SMARTHOME_* variables.")
	fs.BoolVar(&printReading, "print-reading", false, "Print one sensor reading and exit.")
	config.NewOptions().AddFlags(fs)

	return cmd
}

func run(ctx context.Context, opts *config.Options, printReading bool, stdout io.Writer) error {
	logger, err := log.New(opts.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	pahoLog := logger.WithName("paho")
	paho.ERROR = pahoLog.StdLog()
	paho.CRITICAL = pahoLog.StdLog()
	paho.WARN = pahoLog.StdLog()

	board, err := gpio.NewRealBoard(opts.GPIO.Chip, opts.GPIO.Pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer board.Close()

	source := sensor.NewComposite(sensor.NewIIOClimate(opts.Sensor.IIODevice), board, logger.WithName("sensor"))

	if printReading {
		return writeReading(stdout, source)
	}

	m := metrics.New()
	tracker := status.NewTracker(time.Now(), statusConfig(opts))
	if info := network.ReadInfo(); info != nil {
		tracker.SetNetwork(info)
	}

	var recorder store.Recorder = store.Nop{}
	if opts.Influx.Enabled() {
		r, err := store.NewInfluxRecorder(ctx, opts.Influx, opts.MQTT.ClientID, logger)
		if err != nil {
			logger.Error(err, "influx disabled")
		} else {
			recorder = r
		}
	}
	defer recorder.Close()

	conn := connectivity.NewManager(
		network.NewInterfaceLink(opts.Network.Interface),
		mqtt.NewSession(logger, opts.MQTT.InboundCapacity),
		logger,
		connectivity.WithStateHook(automation.ObserveConnectivity(m, tracker, recorder, time.Now)),
	)

	cycle, err := automation.New(automation.Config{
		Params:         opts.Params(),
		Topics:         opts.MQTT.Topics,
		Credentials:    opts.Credentials(),
		Session:        opts.SessionConfig(),
		LinkTimeout:    opts.Network.Timeout,
		FaultBackoff:   opts.Control.FaultBackoff,
		ReconnectEvery: opts.Control.ReconnectEvery,
		AlarmBeep:      opts.Control.AlarmBeep,
	}, automation.Deps{
		Source:    source,
		Actuators: actuator.New(board),
		Conn:      conn,
		Recorder:  recorder,
		Metrics:   m,
		Tracker:   tracker,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	var srv *web.Server
	if opts.HTTP.Addr != "" {
		webOpts := web.Options{
			Metrics:        m.Handler(),
			AllowedOrigins: opts.HTTP.AllowedOrigins,
		}
		if opts.HTTP.AccessLog {
			webOpts.AccessLog = logger.WithName("http").StdLog().Writer()
		}
		srv = web.New(opts.HTTP.Addr, tracker, webOpts)
	}

	return serve(ctx, logger, cycle, srv, opts.Control.ReadInterval)
}

// serve runs the control loop and, when srv is set, the status server. Only
// ctx stops the loop; a status server that fails to listen is logged and the
// node keeps controlling without it.
func serve(ctx context.Context, logger log.Logger, cycle *automation.Cycle, srv *web.Server, interval time.Duration) error {
	var g errgroup.Group

	if srv != nil {
		g.Go(func() error {
			logger.Info("http status server listening", "addr", srv.Addr())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(err, "http status server stopped")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		cycle.Start(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		return cycle.Run(ctx, ticker.C)
	})

	return g.Wait()
}

func statusConfig(opts *config.Options) status.Config {
	return status.Config{
		ReadIntervalMs:  opts.Control.ReadInterval.Milliseconds(),
		AlertCooldownMs: opts.Control.AlertCooldown.Milliseconds(),
		TelemetryEvery:  opts.Control.TelemetryEvery,
		TempHigh:        opts.Control.TempHigh,
		TempLow:         opts.Control.TempLow,
		Broker:          opts.MQTT.Broker,
		HTTPAddr:        opts.HTTP.Addr,
		Topics: map[string]string{
			"telemetry": opts.MQTT.Topics.Telemetry,
			"control":   opts.MQTT.Topics.Control,
			"alerts":    opts.MQTT.Topics.Alerts,
			"status":    opts.MQTT.Topics.Status,
		},
	}
}

// writeReading prints one reading in a human-readable line.
func writeReading(w io.Writer, src sensor.Source) error {
	r, err := src.Read()
	if err != nil {
		return fmt.Errorf("read sensors: %w", err)
	}
	_, err = fmt.Fprintf(w, "Temperature: %s, Humidity: %s, Motion: %s\n",
		formatValue(r.Temperature, "°C"), formatValue(r.Humidity, "%"), onOff(r.Motion))
	return err
}

func formatValue(v *float64, unit string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%s", *v, unit)
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
