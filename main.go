package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"midipush/config"
	"midipush/debug"
	"midipush/midi"
	"midipush/sequencer"
	"midipush/theme"
	"midipush/timeline"
	"midipush/tui"
)

var flags struct {
	test     string
	config   string
	state    string
	export   string
	debug    bool
	headless bool
}

var rootCmd = &cobra.Command{
	Use:   "midipush [curve] [threshold]",
	Short: "Step sequencer and looper for a grid pad controller and a MIDI keyboard",
	Long: `midipush records pads and keys into a 1536 beat loop of 64 pages on 16
channels, plays it back to a synth and shows it on the pad grid.

curve is the pad velocity curve (linear, soft, hard, fixed).
threshold drops pad strikes softer than the given velocity.`,
	Args:          cobra.MaximumNArgs(2),
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flags.test, "test", "", "run a self test ("+strings.Join(sequencer.SelfTests, ", ")+") and exit")
	f.StringVar(&flags.config, "config", "", "config file (default ~/.config/midipush/config.json)")
	f.StringVar(&flags.state, "state", "", "state file (overrides the config)")
	f.StringVar(&flags.export, "export", "", "write the saved timeline as a standard MIDI file and exit")
	f.BoolVar(&flags.debug, "debug", false, "write a debug log to ~/.config/midipush/debug.log")
	f.BoolVar(&flags.headless, "headless", false, "run without the terminal UI")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "midipush:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if flags.config != "" {
		return config.LoadFile(flags.config)
	}
	return config.Load()
}

// options merges the config with the positional arguments
func options(cfg *config.Config, args []string) (sequencer.Options, error) {
	curveName := cfg.Pads.Curve
	threshold := cfg.Pads.Threshold
	if len(args) > 0 {
		curveName = args[0]
	}
	if len(args) > 1 {
		t, err := strconv.Atoi(args[1])
		if err != nil || t < 0 || t > 127 {
			return sequencer.Options{}, fmt.Errorf("threshold %q: want 0-127", args[1])
		}
		threshold = t
	}
	curve, err := sequencer.ParseCurve(curveName)
	if err != nil {
		return sequencer.Options{}, err
	}
	return sequencer.Options{
		BPM:          cfg.BPM,
		Curve:        curve,
		Threshold:    threshold,
		Debounce:     time.Duration(cfg.DebounceMS) * time.Millisecond,
		Metronome:    cfg.Metronome,
		ChannelFirst: cfg.Arrows == config.ArrowsChannelFirst,
	}, nil
}

func run(cmd *cobra.Command, args []string) error {
	if flags.debug {
		if err := debug.Enable(); err != nil {
			return fmt.Errorf("debug log: %w", err)
		}
		defer debug.Disable()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opt, err := options(cfg, args)
	if err != nil {
		return err
	}

	palette := theme.Default()
	if cfg.UI.Palette != "" {
		if palette, err = theme.LoadGPL(cfg.UI.Palette); err != nil {
			return err
		}
	}
	opt.Palette = palette

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if flags.test != "" {
		return selfTest(ctx, cfg, palette)
	}

	statePath := flags.state
	if statePath == "" {
		if statePath, err = cfg.StatePath(); err != nil {
			return err
		}
	}

	engine, err := sequencer.NewEngine(timeline.New(), opt)
	if err != nil {
		return err
	}
	if err := sequencer.LoadFile(statePath, engine); err != nil {
		// a bad state file is not fatal, the engine starts empty
		fmt.Fprintf(os.Stderr, "midipush: %v (starting empty)\n", err)
	}

	if flags.export != "" {
		if err := sequencer.ExportFile(flags.export, engine); err != nil {
			return err
		}
		fmt.Printf("exported %d events to %s\n", engine.View().Events(), flags.export)
		return nil
	}

	synth, err := openSynth(cfg.Ports.Synth)
	if err != nil {
		return err
	}
	mgr := sequencer.NewManager(engine, synth, sequencer.ManagerOptions{StatePath: statePath})

	devices := midi.NewDeviceManager(midi.PortMatch{Pads: cfg.Ports.Pads, Keyboard: cfg.Ports.Keyboard})
	go devices.Run(ctx)
	go func() {
		for ev := range devices.Events() {
			if ev.Type == midi.DeviceConnected {
				mgr.AttachController(ev.Controller)
			}
		}
	}()

	var runErr error
	done := make(chan struct{})
	go func() {
		runErr = mgr.Run(ctx)
		close(done)
	}()

	if flags.headless || cfg.UI.Headless {
		fmt.Println("midipush running headless, ctrl+c to stop")
		<-done
		return runErr
	}

	// logrus would scribble over the alt screen
	debug.SetOutput(io.Discard)
	defer debug.SetOutput(os.Stderr)

	p := tea.NewProgram(tui.NewModel(mgr, mgr.Updates(), theme.New(palette), opt.ChannelFirst), tea.WithAltScreen())
	go func() {
		<-done
		p.Quit()
	}()
	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("tui: %w", err)
	}
	cancel()
	<-done
	return runErr
}

type discard struct{}

func (discard) Send(midi.Event) error { return nil }
func (discard) Name() string          { return "none" }

func openSynth(match string) (midi.Sender, error) {
	port := midi.FindOutPort(match)
	if port == nil {
		debug.Warn("synth", "no output port matching %q, playing silently", match)
		return discard{}, nil
	}
	return midi.OpenOutput(port)
}

// openPads opens the first pad grid whose port name matches
func openPads(match string) (midi.Controller, error) {
	ins, outs, ok := midi.ListPorts(3 * time.Second)
	if !ok {
		return nil, errors.New("port scan timed out")
	}
	for _, in := range ins {
		if !midi.MatchPort(in.String(), match) {
			continue
		}
		for _, out := range outs {
			if strings.EqualFold(out.String(), in.String()) {
				return midi.NewPushController(in.String(), in, out)
			}
		}
	}
	return nil, fmt.Errorf("no pad controller matching %q", match)
}

func selfTest(ctx context.Context, cfg *config.Config, palette *theme.Palette) error {
	env := sequencer.SelfTestEnv{Out: os.Stdout, Palette: palette, ExportPath: flags.export}
	if flags.test == "leds" {
		pads, err := openPads(cfg.Ports.Pads)
		if err != nil {
			return err
		}
		defer pads.Close()
		env.Pads = pads
	}
	if err := sequencer.RunSelfTest(ctx, flags.test, env); err != nil {
		return err
	}
	fmt.Printf("%s: ok\n", flags.test)
	return nil
}
