package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"midipush/config"
	"midipush/midi"
)

const scanTimeout = 3 * time.Second

var rootCmd = &cobra.Command{
	Use:           "miditest",
	Short:         "MIDI port probes for midipush",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(
		&cobra.Command{Use: "list", Short: "List all MIDI ports", Args: cobra.NoArgs, RunE: listPorts},
		&cobra.Command{Use: "detect", Short: "Find the configured pad grid, keyboard and synth", Args: cobra.NoArgs, RunE: detect},
		&cobra.Command{Use: "monitor [port...]", Short: "Print incoming messages as 0xSS: d d", RunE: monitor},
		&cobra.Command{Use: "poll", Short: "Report port changes every 2 seconds", Args: cobra.NoArgs, RunE: poll},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "miditest:", err)
		os.Exit(1)
	}
}

func scan() (ins, outs []string, err error) {
	in, out, ok := midi.ListPorts(scanTimeout)
	if !ok {
		return nil, nil, fmt.Errorf("port scan timed out (CoreMIDI hung? sudo killall coreaudiod midiserver)")
	}
	for _, p := range in {
		ins = append(ins, p.String())
	}
	for _, p := range out {
		outs = append(outs, p.String())
	}
	return ins, outs, nil
}

func listPorts(cmd *cobra.Command, args []string) error {
	ins, outs, err := scan()
	if err != nil {
		return err
	}
	fmt.Println("=== MIDI Input Ports ===")
	for i, name := range ins {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, name := range outs {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}

func detect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ins, outs, err := scan()
	if err != nil {
		return err
	}
	find := func(names []string, match string) string {
		for _, n := range names {
			if midi.MatchPort(n, match) {
				return n
			}
		}
		return ""
	}
	for _, p := range []struct {
		role, match string
		ports       []string
	}{
		{"pads", cfg.Ports.Pads, ins},
		{"keyboard", cfg.Ports.Keyboard, ins},
		{"synth", cfg.Ports.Synth, outs},
	} {
		if name := find(p.ports, p.match); name != "" {
			fmt.Printf("%-9s %q -> %s\n", p.role, p.match, name)
		} else {
			fmt.Printf("%-9s %q not found\n", p.role, p.match)
		}
	}
	return nil
}

// monitor listens on every input port matching one of args (all ports when none)
func monitor(cmd *cobra.Command, args []string) error {
	ports, _, ok := midi.ListPorts(scanTimeout)
	if !ok {
		return fmt.Errorf("port scan timed out")
	}
	var stops []func()
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()
	for _, in := range ports {
		name := in.String()
		if len(args) > 0 && !matchAny(name, args) {
			continue
		}
		stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, ms int32) {
			fmt.Printf("%8d %-24s %s\n", ms, name, midi.Dump(msg))
		}, gomidi.UseSysEx())
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", name, err)
			continue
		}
		stops = append(stops, stop)
		fmt.Printf("listening on %s\n", name)
	}
	if len(stops) == 0 {
		return fmt.Errorf("no input ports to monitor")
	}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	return nil
}

func matchAny(name string, matches []string) bool {
	for _, m := range matches {
		if midi.MatchPort(name, m) {
			return true
		}
	}
	return false
}

func poll(cmd *cobra.Command, args []string) error {
	fmt.Println("Polling for device changes every 2 seconds. Ctrl+C to exit.")
	var last string
	for {
		ins, outs, err := scan()
		if err != nil {
			return err
		}
		current := strings.Join(ins, ",") + "|" + strings.Join(outs, ",")
		if current != last {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", ins)
			fmt.Printf("  Outputs: %v\n", outs)
			last = current
		}
		time.Sleep(2 * time.Second)
	}
}
