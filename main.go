package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	pion "github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/ptzbridge/cmd"
	"github.com/smazurov/ptzbridge/internal/api"
	"github.com/smazurov/ptzbridge/internal/bridge"
	"github.com/smazurov/ptzbridge/internal/capture"
	"github.com/smazurov/ptzbridge/internal/config"
	"github.com/smazurov/ptzbridge/internal/discovery"
	"github.com/smazurov/ptzbridge/internal/encoder"
	"github.com/smazurov/ptzbridge/internal/events"
	"github.com/smazurov/ptzbridge/internal/led"
	"github.com/smazurov/ptzbridge/internal/logging"
	"github.com/smazurov/ptzbridge/internal/ptz"
	"github.com/smazurov/ptzbridge/internal/session"
	"github.com/smazurov/ptzbridge/internal/streaming"
	"github.com/smazurov/ptzbridge/internal/systemd"
	"github.com/smazurov/ptzbridge/internal/visca"
	"golang.org/x/sync/errgroup"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Source settings
	SourcesFile   string `help:"Capture source definitions file" default:"sources.toml" toml:"sources.file" env:"SOURCES_FILE"`
	SourceName    string `help:"Preferred source name" short:"s" default:"" toml:"sources.preferred" env:"SOURCE_NAME"`
	PollInterval  string `help:"Wait between discovery attempts" default:"5s" toml:"sources.poll_interval" env:"SOURCES_POLL_INTERVAL"`
	ProbeTimeout  string `help:"Connection probe timeout per source" default:"2s" toml:"sources.probe_timeout" env:"SOURCES_PROBE_TIMEOUT"`
	CaptureSettle string `help:"Wait after connecting before the first pull" default:"2s" toml:"capture.settle" env:"CAPTURE_SETTLE"`
	PullTimeout   string `help:"Frame pull timeout" default:"5s" toml:"capture.pull_timeout" env:"CAPTURE_PULL_TIMEOUT"`

	// PTZ settings
	ViscaPort     int    `help:"VISCA-over-IP UDP port" default:"52381" toml:"ptz.visca_port" env:"PTZ_VISCA_PORT"`
	ReplyTimeout  string `help:"Camera reply timeout" default:"1s" toml:"ptz.reply_timeout" env:"PTZ_REPLY_TIMEOUT"`
	PtzRateLimit  int    `help:"Commands per second sent to the camera" default:"20" toml:"ptz.rate_limit" env:"PTZ_RATE_LIMIT"`
	PtzRateBurst  int    `help:"Command burst allowance" default:"5" toml:"ptz.rate_burst" env:"PTZ_RATE_BURST"`

	// Video settings
	VideoWidth            int `help:"Output width" default:"1280" toml:"video.width" env:"VIDEO_WIDTH"`
	VideoHeight           int `help:"Output height" default:"720" toml:"video.height" env:"VIDEO_HEIGHT"`
	VideoFramerate        int `help:"Output frames per second" default:"30" toml:"video.framerate" env:"VIDEO_FRAMERATE"`
	VideoBitrate          int `help:"VP8 target bitrate in bits per second" default:"2000000" toml:"video.bitrate" env:"VIDEO_BITRATE"`
	VideoKeyFrameInterval int `help:"Frames between VP8 keyframes" default:"60" toml:"video.keyframe_interval" env:"VIDEO_KEYFRAME_INTERVAL"`

	// WebRTC settings
	IceServers string `help:"Comma-separated STUN/TURN URLs (empty for LAN-only)" default:"" toml:"webrtc.ice_servers" env:"WEBRTC_ICE_SERVERS"`

	// Feature flags
	FeaturesLedControl bool `help:"Mirror capture and consumer state on board LEDs" default:"false" toml:"features.led_control" env:"FEATURES_LED_CONTROL"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingDiscovery string `help:"Discovery logging level" default:"info" toml:"logging.discovery" env:"LOGGING_DISCOVERY"`
	LoggingCapture   string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingBridge    string `help:"Bridge loop logging level" default:"info" toml:"logging.bridge" env:"LOGGING_BRIDGE"`
	LoggingPtz       string `help:"PTZ dispatch logging level" default:"info" toml:"logging.ptz" env:"LOGGING_PTZ"`
	LoggingVisca     string `help:"VISCA link logging level" default:"info" toml:"logging.visca" env:"LOGGING_VISCA"`
	LoggingWebRTC    string `help:"WebRTC logging level" default:"info" toml:"logging.webrtc" env:"LOGGING_WEBRTC"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

// duration parses s, falling back to def with a warning.
func duration(logger *slog.Logger, name, s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		logger.Warn("Invalid duration, using default", "option", name, "value", s, "default", def)
		return def
	}
	return d
}

func iceServers(list string) []pion.ICEServer {
	var servers []pion.ICEServer
	for _, url := range strings.Split(list, ",") {
		if url = strings.TrimSpace(url); url != "" {
			servers = append(servers, pion.ICEServer{URLs: []string{url}})
		}
	}
	return servers
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		configErr := config.LoadConfig(opts, cli.Root())

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"discovery": opts.LoggingDiscovery,
				"capture":   opts.LoggingCapture,
				"bridge":    opts.LoggingBridge,
				"ptz":       opts.LoggingPtz,
				"visca":     opts.LoggingVisca,
				"webrtc":    opts.LoggingWebRTC,
				"streaming": opts.LoggingWebRTC,
				"api":       opts.LoggingAPI,
			},
		})
		logger := logging.GetLogger("main")
		if configErr != nil {
			logger.Warn("Failed to load config", "error", configErr)
		}

		eventBus := events.New()

		// Mirror log lines onto the bus for /api/logs/stream.
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})

		hooks.OnStart(func() {
			defer close(stopped)
			defer cancel()

			notifier := systemd.NewNotifier(logger)
			defer notifier.Stopping()

			if opts.FeaturesLedControl {
				ledLogger := logging.GetLogger("led")
				ledManager := led.NewManager(led.New(ledLogger), eventBus, ledLogger)
				ledManager.Start()
				defer ledManager.Stop()
			}

			discoveryLogger := logging.GetLogger("discovery")
			finder, err := discovery.NewFileFinder(opts.SourcesFile,
				discovery.WithProbeTimeout(duration(logger, "probe-timeout", opts.ProbeTimeout, 2*time.Second)))
			if err != nil {
				logger.Error("Source discovery unavailable", "file", opts.SourcesFile, "error", err)
				os.Exit(1)
			}

			sourcesWatcher := config.NewConfigWatcher(opts.SourcesFile, discovery.LoadSourcesFile, discoveryLogger)
			sourcesWatcher.OnReload(func(sources []discovery.Source) {
				finder.SetSources(sources)
				names := make([]string, 0, len(sources))
				for _, s := range sources {
					names = append(names, s.Name)
				}
				discoveryLogger.Info("Sources file reloaded", "sources", names)
				eventBus.Publish(events.SourcesChangedEvent{Names: names, Timestamp: events.Now()})
			})

			if err := sourcesWatcher.Start(); err != nil {
				logger.Warn("Sources file will not be watched", "error", err)
			}
			defer func() { _ = sourcesWatcher.Stop() }()

			captureLogger := logging.GetLogger("capture")
			viscaLogger := logging.GetLogger("visca")
			replyTimeout := duration(logger, "reply-timeout", opts.ReplyTimeout, visca.DefaultReplyTimeout)

			notifier.Status("searching for a source")
			sess, err := session.Connect(ctx, session.Options{
				Finder:        finder,
				PreferredName: opts.SourceName,
				PollInterval:  duration(logger, "poll-interval", opts.PollInterval, discovery.DefaultPollInterval),
				Settle:        duration(logger, "capture-settle", opts.CaptureSettle, session.DefaultSettle),
				ViscaPort:     opts.ViscaPort,
				ReplyTimeout:  replyTimeout,
				RateLimit:     float64(opts.PtzRateLimit),
				RateBurst:     opts.PtzRateBurst,
				Bus:           eventBus,
				Logger:        discoveryLogger,
				OpenReceiver: func(src discovery.Source) session.Receiver {
					return capture.OpenMJPEG(src.URL(), capture.WithLogger(captureLogger))
				},
				DialController: func(ctx context.Context, address string) (session.Controller, error) {
					conn, err := visca.Dial(ctx, address,
						visca.WithReplyTimeout(replyTimeout),
						visca.WithRateLimit(float64(opts.PtzRateLimit), opts.PtzRateBurst),
						visca.WithLogger(viscaLogger),
					)
					if err != nil {
						return nil, err
					}
					return conn, nil
				},
			})
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Error("Failed to connect to a source", "error", err)
				os.Exit(1)
			}
			defer sess.Close()

			cache := &bridge.Cache{}
			loop := bridge.NewLoop(sess, cache, sess.Clock(),
				bridge.WithPullTimeout(duration(logger, "pull-timeout", opts.PullTimeout, bridge.DefaultPullTimeout)),
				bridge.WithEventBus(eventBus),
				bridge.WithLogger(logging.GetLogger("bridge")),
			)

			webrtcManager := streaming.NewWebRTCManager(cache, sess.Clock(), streaming.WebRTCConfig{
				ICEServers: iceServers(opts.IceServers),
				Video: streaming.VideoConfig{
					Width:  opts.VideoWidth,
					Height: opts.VideoHeight,
					FPS:    opts.VideoFramerate,
				},
			}, encoder.NewVP8Factory(encoder.VP8Config{
				Bitrate:          opts.VideoBitrate,
				KeyFrameInterval: opts.VideoKeyFrameInterval,
			}), eventBus, logging.GetLogger("webrtc"))
			defer webrtcManager.Stop()

			dispatcher := ptz.NewDispatcher(sess, eventBus, logging.GetLogger("ptz"))

			server := api.NewServer(&api.Options{
				Session:           sess,
				Loop:              loop,
				Cache:             cache,
				Finder:            finder,
				Dispatcher:        dispatcher,
				WebRTC:            webrtcManager,
				EventBus:          eventBus,
				PrometheusHandler: promhttp.Handler(),
			})

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return loop.Run(ctx)
			})
			g.Go(func() error {
				return server.Start(opts.Port)
			})
			g.Go(func() error {
				notifier.RunWatchdog(ctx, loop.Running)
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelShutdown()
				return server.Shutdown(shutdownCtx)
			})

			notifier.Ready("streaming " + sess.Source().Name)

			if err := g.Wait(); err != nil {
				logger.Error("Bridge stopped", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
			select {
			case <-stopped:
			case <-time.After(10 * time.Second):
				logger.Warn("Shutdown timed out")
			}
		})
	})

	// Subcommands
	cli.Root().AddCommand(cmd.CreateSourcesCmd())
	cli.Root().AddCommand(cmd.CreatePTZCmd())

	cli.Run()
}
