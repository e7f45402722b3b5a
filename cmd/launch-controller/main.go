// Command launch-controller runs the five-pad launch controller: it polls the
// console switches, arms over the coded wireless link and sequences the pads,
// publishing every state change to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sweeney/launch-controller/internal/config"
	"github.com/sweeney/launch-controller/internal/display"
	"github.com/sweeney/launch-controller/internal/gpio"
	"github.com/sweeney/launch-controller/internal/logic"
	"github.com/sweeney/launch-controller/internal/mqtt"
	"github.com/sweeney/launch-controller/internal/radio"
	"github.com/sweeney/launch-controller/internal/status"
	"github.com/sweeney/launch-controller/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (built-in defaults when empty)")
	poll := flag.Duration("poll", 10*time.Millisecond, "Input polling interval")
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	serialPort := flag.String("serial", "", "Transceiver serial device (empty simulates the pad controller)")
	httpAddr := flag.String("http", ":8080", "HTTP status address (empty to disable)")
	gpioChip := flag.String("gpio-chip", "gpiochip0", "GPIO character device")
	logFile := flag.String("log-file", "", "Log to this file with rotation instead of stderr")
	printState := flag.Bool("print-state", false, "Print current input state and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	// Flags given on the command line win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "poll":
			cfg.PollMs = int(poll.Milliseconds())
		case "broker":
			cfg.MQTT.Broker = *broker
		case "heartbeat":
			cfg.MQTT.HeartbeatMs = int(heartbeat.Milliseconds())
		case "serial":
			cfg.Radio.Port = *serialPort
		case "http":
			cfg.HTTP.Addr = *httpAddr
		case "gpio-chip":
			cfg.GPIO.Chip = *gpioChip
		case "log-file":
			cfg.Log.File = *logFile
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: invalid config: %v", err)
	}

	if w := logOutput(cfg.Log); w != nil {
		log.SetOutput(w)
		defer w.Close()
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// logOutput returns a rotating log file writer, or nil to keep stderr.
func logOutput(lc config.LogConfig) io.WriteCloser {
	if lc.File == "" {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   lc.File,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
		Compress:   true,
	}
}

func run(cfg *config.Config, printState bool) error {
	// Initialize GPIO
	gpioReader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.Pins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer gpioReader.Close()

	// Print state mode
	if printState {
		s, err := gpioReader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Println(formatSample(s))
		return nil
	}

	lamps, err := gpio.NewRealIndicators(cfg.GPIO.Chip, cfg.GPIO.LinkOK, cfg.GPIO.LinkError)
	if err != nil {
		return fmt.Errorf("init status lamps: %w", err)
	}
	defer lamps.Close()

	// Initialize the pad link
	codes := cfg.Logic().Codes
	var channel logic.Channel
	if cfg.Radio.Port != "" {
		transceiver, err := radio.Open(cfg.Radio.Port, cfg.Radio.Serial, codes, cfg.Modulation())
		if err != nil {
			return fmt.Errorf("init transceiver: %w", err)
		}
		defer transceiver.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := transceiver.Monitor(ctx); err != nil && ctx.Err() == nil {
				log.Printf("transceiver monitor stopped: %v", err)
			}
		}()
		channel = transceiver
	} else {
		log.Printf("no transceiver configured, simulating the pad controller")
		channel = radio.NewSimulator(codes, cfg.SimulatedReply())
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	bank := mirroredDisplays(display.NewLoggerBank(), publisher, time.Now)
	out := &logic.Outputs{Channel: channel, Link: lamps}
	bank.Apply(out)

	// Initialize status tracker (before STARTUP so snapshot is available)
	startTime := time.Now()
	tracker := status.NewTracker(startTime, status.Config{
		PollMs:              int64(cfg.PollMs),
		DebounceMs:          int64(cfg.Timing.DebounceMs),
		HeartbeatMs:         int64(cfg.MQTT.HeartbeatMs),
		CountdownMs:         int64(cfg.Timing.CountdownMs),
		ConnectionTimeoutMs: int64(cfg.Timing.ConnectionTimeoutMs),
		Broker:              cfg.MQTT.Broker,
		HTTPAddr:            cfg.HTTP.Addr,
		SerialPort:          cfg.Radio.Port,
	})
	ctrl := logic.NewController(cfg.Logic(), out, startTime)
	tracker.Update(ctrl.Status())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: poll=%v debounce=%dms countdown=%dms broker=%s heartbeat=%v",
		cfg.Poll(), cfg.Timing.DebounceMs, cfg.Timing.CountdownMs, cfg.MQTT.Broker, cfg.Heartbeat())

	ticker := time.NewTicker(cfg.Poll())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(gpioReader, ctrl, publisher, publisher, tracker, cfg.Heartbeat(), time.Now, ticker.C, sigCh)
}

// mirroredDisplays copies every display of local to MQTT countdown telemetry.
func mirroredDisplays(local display.Bank, pub mqtt.Publisher, now func() time.Time) display.Bank {
	b := display.Bank{
		Main: display.Mirror{local.Main, mqtt.NewDisplay("main", pub, now)},
	}
	for i := range b.Pads {
		b.Pads[i] = display.Mirror{local.Pads[i], mqtt.NewDisplay(fmt.Sprintf("pad%d", i+1), pub, now)}
	}
	return b
}

func runLoop(gpioReader gpio.Reader, ctrl *logic.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}

			t := now()
			publishEvents(publisher, ctrl.Shutdown(t))

			event := mqtt.SystemEvent{
				Timestamp: t,
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				tracker.Update(ctrl.Status())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			sample, err := gpioReader.Read()
			if err != nil {
				// Without inputs nothing may advance, the countdown included.
				log.Printf("gpio read error: %v", err)
				continue
			}

			publishEvents(publisher, ctrl.Step(sample, t))

			// Check for heartbeat
			if hbData := ctrl.CheckHeartbeat(t, heartbeat); hbData != nil {
				c := hbData.Counts
				log.Printf("heartbeat: uptime=%v sequences=%d fired=%d skipped=%d estops=%d link_fails=%d",
					hbData.Uptime, c.Sequences, c.Fired, c.Skipped, c.EStops, c.LinkFails)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					if mqttStatus != nil {
						tracker.SetMQTTConnected(mqttStatus.IsConnected())
					}
					tracker.Update(ctrl.Status())
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			// Update status tracker for HTTP consumers
			if tracker != nil {
				tracker.Update(ctrl.Status())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
		}
	}
}

func publishEvents(publisher mqtt.Publisher, events []logic.Event) {
	for _, event := range events {
		log.Printf("event: %s", formatEvent(event))
		if err := publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
			// Don't crash on publish failure
		}
	}
}

// formatEvent renders an event for the log, e.g. "PAD_FIRED pad=3 session=...".
func formatEvent(e logic.Event) string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.Pad != logic.NoPad {
		fmt.Fprintf(&b, " pad=%d", e.Pad+1)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, " reason=%s", e.Reason)
	}
	if e.Session != "" {
		fmt.Fprintf(&b, " session=%s", e.Session)
	}
	return b.String()
}

// formatSample renders raw input state for -print-state.
func formatSample(s logic.Sample) string {
	var b strings.Builder
	fmt.Fprintf(&b, "KEY: %s, ENABLE: %s, TRIGGER: %s, ESTOP: %s, PADS:",
		stateString(s.Key), stateString(s.Enable), stateString(s.Trigger), stateString(s.EStop))
	for i, engaged := range s.Pads {
		fmt.Fprintf(&b, " %d=%s", i+1, stateString(engaged))
	}
	return b.String()
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
