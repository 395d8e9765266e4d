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

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"github.com/tep-xi/lightshow/internal/audio"
	"github.com/tep-xi/lightshow/internal/cli"
	"github.com/tep-xi/lightshow/internal/colorize"
	"github.com/tep-xi/lightshow/internal/config"
	"github.com/tep-xi/lightshow/internal/fixture"
	"github.com/tep-xi/lightshow/internal/graph"
	"github.com/tep-xi/lightshow/internal/monitor"
	"github.com/tep-xi/lightshow/internal/show"
	"github.com/tep-xi/lightshow/internal/stream"
)

var (
	version = "0.1.0"
)

// CLI defines the command-line interface
type CLI struct {
	Version bool   `short:"v" help:"Show version information"`
	Config  string `short:"c" type:"path" help:"Path to YAML config file (optional)"`
	Verbose bool   `help:"Log per-tick decisions at debug level"`
	Monitor bool   `short:"m" help:"Show a live terminal monitor"`
	Source  string `help:"Capture source: portaudio, file or webrtc (overrides config)"`
	File    string `type:"path" help:"Audio file to replay with --source=file"`
	Listen  string `help:"HTTP status address, e.g. :8080 (overrides config)"`
}

func main() {
	cliArgs := &CLI{}
	kong.Parse(cliArgs,
		kong.Name("lightshow"),
		kong.Description("Audio-reactive lighting controller"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.HelpPrinter),
	)

	if cliArgs.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	if err := run(cliArgs); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// run owns every resource it opens; deferred closes run on all exit paths
// before main decides the exit status.
func run(args *CLI) error {
	cfg, err := config.Load(args.Config)
	if err != nil {
		return err
	}
	if args.Source != "" {
		cfg.Source = args.Source
	}
	if args.File != "" {
		cfg.File = args.File
	}
	if args.Listen != "" {
		cfg.HTTPAddr = args.Listen
	}
	cfg.Verbose = cfg.Verbose || args.Verbose
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logFile, err := setupLogging(cfg.Verbose, args.Monitor)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src, ingest, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()
	if ingest != nil {
		defer ingest.Close()
	}

	sinks, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSinks(sinks)

	c, err := colorize.New(nil)
	if err != nil {
		return err
	}
	sh, err := show.New(cfg, audio.NewFramer(src, cfg.FrameSize()), c, sinks)
	if err != nil {
		return err
	}

	engine := graph.NewEngine(sh.Graph())
	snaps := make(chan stream.Snapshot, 64)
	engine.OnTick(sh.Watch(snaps))

	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, snaps)

	if cfg.HTTPAddr != "" {
		server := newServer(cfg.HTTPAddr, broadcaster, ingest)
		defer server.Close()
		go func() {
			log.WithFields(log.Fields{"component": "http", "addr": cfg.HTTPAddr}).Info("Status server listening")
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				log.WithFields(log.Fields{"component": "http", "error": err}).Error("HTTP server failed")
				cancel()
			}
		}()
	}

	if !args.Monitor {
		printBanner(cfg, len(sinks))
	}

	result := make(chan error, 1)
	go func() { result <- engine.Run(ctx) }()

	if args.Monitor {
		err = runMonitor(cancel, broadcaster, result)
	} else {
		err = <-result
	}

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		log.WithField("component", "main").Info("Shutting down...")
		return nil
	case errors.Is(err, io.EOF):
		log.WithField("component", "main").Info("End of input")
		return nil
	default:
		return err
	}
}

// setupLogging configures logrus. With the monitor on, logs go to a file so
// they do not tear the alt screen.
func setupLogging(verbose, toFile bool) (*os.File, error) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	if !toFile {
		return nil, nil
	}
	f, err := os.OpenFile("lightshow.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	return f, nil
}

func openSource(cfg config.Config) (audio.Source, *stream.IngestHandler, error) {
	switch cfg.Source {
	case "file":
		src, err := audio.OpenFile(cfg.File, cfg.SampleRate, cfg.PeriodSize, cfg.Realtime)
		return src, nil, err
	case "webrtc":
		push := audio.NewPushSource(64)
		ingest, err := stream.NewIngestHandler(push, cfg.SampleRate)
		if err != nil {
			push.Close()
			return nil, nil, err
		}
		return push, ingest, nil
	default:
		src, err := audio.OpenPortAudio(cfg.SampleRate, cfg.PeriodSize)
		return src, nil, err
	}
}

// openSinks opens every enabled output driver. On failure the drivers
// already opened are closed before returning.
func openSinks(ctx context.Context, cfg config.Config) (sinks []fixture.Sink, err error) {
	defer func() {
		if err != nil {
			closeSinks(sinks)
			sinks = nil
		}
	}()

	if cfg.Relay.Enabled {
		relay, err := fixture.OpenRelay(cfg.Relay.Device, cfg.Relay.Baud, cfg.Relay.Groups, cfg.Relay.Constant)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, relay)
	}
	if cfg.Panel.Enabled {
		panel, err := fixture.DialPanel(cfg.Panel.Addr, byte(cfg.Panel.Port), cfg.Panel.Comp)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, panel)
	}
	if cfg.Bridge.Enabled {
		bridge := fixture.NewBridge(fixture.BridgeConfig{
			URL:        cfg.Bridge.URL,
			User:       cfg.Bridge.User,
			Group:      cfg.Bridge.Group,
			Lights:     cfg.Bridge.Lights,
			Brightness: cfg.Bridge.Brightness,
			Transition: cfg.Bridge.Transition,
		})
		// the bridge joins the list first so a failed Start still resets the group
		sinks = append(sinks, bridge)
		if err := bridge.Start(ctx); err != nil {
			return sinks, fmt.Errorf("bridge: %w", err)
		}
	}
	return sinks, nil
}

// closeSinks releases drivers in reverse order of opening.
func closeSinks(sinks []fixture.Sink) {
	for i := len(sinks) - 1; i >= 0; i-- {
		if err := sinks[i].Close(); err != nil {
			log.WithFields(log.Fields{
				"component": "main",
				"sink":      sinks[i].Name(),
				"error":     err,
			}).Warn("Output cleanup failed")
		}
	}
}

func newServer(addr string, b *stream.Broadcaster, ingest *stream.IngestHandler) *http.Server {
	peers := func() int { return 0 }
	mux := http.NewServeMux()
	if ingest != nil {
		mux.Handle("/offer", ingest)
		peers = ingest.PeerCount
	}
	mux.Handle("/api/status", stream.NewStatusHandler(b, peers))
	mux.Handle("/api/ticks", stream.NewTicksHandler(b))
	return &http.Server{Addr: addr, Handler: mux}
}

// runMonitor shows the terminal monitor until the operator quits or the
// engine stops, then returns the engine's result.
func runMonitor(cancel context.CancelFunc, b *stream.Broadcaster, result <-chan error) error {
	l := b.Subscribe()
	p := tea.NewProgram(monitor.NewModel(l), tea.WithAltScreen())

	ended := make(chan error, 1)
	go func() {
		err := <-result
		b.Unsubscribe(l)
		ended <- err
	}()

	final, err := p.Run()
	if err != nil {
		log.WithFields(log.Fields{"component": "monitor", "error": err}).Warn("Monitor failed")
		cancel()
	}
	if m, ok := final.(monitor.Model); ok && m.Quit {
		cancel()
	}
	return <-ended
}

func printBanner(cfg config.Config, sinks int) {
	fmt.Println(cli.TitleStyle.Render("Lightshow 💡"))
	fmt.Println(cli.Field("Source", cfg.Source))
	fmt.Println(cli.Field("Tick", cfg.TickDuration()))
	fmt.Println(cli.Field("Priming ticks", cfg.TrendWindow-1))
	fmt.Println(cli.Field("Outputs", sinks))
	if cfg.HTTPAddr != "" {
		fmt.Println(cli.Field("Status", "http://"+cfg.HTTPAddr+"/api/status"))
	}
	fmt.Println()
}
