package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"fallingkeys/config"
	"fallingkeys/debug"
	"fallingkeys/midi"
	"fallingkeys/sequencer"
	"fallingkeys/song"
	"fallingkeys/theme"
	"fallingkeys/tui"
)

var flags struct {
	config     string
	out        string
	in         string
	speed      float64
	leadInMs   int
	wait       bool
	echo       bool
	noInput    bool
	lastPreset bool
	debug      bool
}

var rootCmd = &cobra.Command{
	Use:   "fallingkeys <file.mid>",
	Short: "Play along to MIDI files in the terminal",
	Long: `fallingkeys plays a Standard MIDI File to a MIDI output while its notes
fall onto an on-screen keyboard. Hand any track to yourself and play it on a
connected MIDI keyboard; wait mode holds the song until you hit the right keys.`,
	Args: cobra.ExactArgs(1),
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&flags.config, "config", "c", "",
		"Config file (default ~/.config/fallingkeys/config.json)")
	rootCmd.Flags().StringVarP(&flags.out, "out", "o", "",
		"MIDI output port (name or part of it)")
	rootCmd.Flags().StringVarP(&flags.in, "in", "i", "",
		"MIDI input port for the keyboard (default: first one found)")
	rootCmd.Flags().Float64VarP(&flags.speed, "speed", "s", 0,
		"Playback speed multiplier, 0.1 to 2.0")
	rootCmd.Flags().IntVar(&flags.leadInMs, "lead-in", -1,
		"Milliseconds before the first note")
	rootCmd.Flags().BoolVarP(&flags.wait, "wait", "w", false,
		"Hold playback until required notes are played")
	rootCmd.Flags().BoolVarP(&flags.echo, "echo", "e", false,
		"Send keyboard notes to the output")
	rootCmd.Flags().BoolVar(&flags.noInput, "no-input", false,
		"Do not look for a MIDI keyboard")
	rootCmd.Flags().BoolVarP(&flags.lastPreset, "preset", "p", false,
		"Restore the most recent preset saved for this song")
	rootCmd.Flags().BoolVarP(&flags.debug, "debug", "d", false,
		"Write debug logs to ~/.config/fallingkeys/debug.log")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flags.config != "" {
		cfg, err = config.LoadFile(flags.config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	// Flags override the file
	if flags.out != "" {
		cfg.OutputPort = flags.out
	}
	if flags.in != "" {
		cfg.InputPort = flags.in
	}
	if cmd.Flags().Changed("speed") {
		cfg.Speed = flags.speed
	}
	if flags.leadInMs >= 0 {
		cfg.LeadInMs = flags.leadInMs
	}
	cfg.WaitMode = cfg.WaitMode || flags.wait
	cfg.Echo = cfg.Echo || flags.echo
	cfg.Debug = cfg.Debug || flags.debug
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Debug {
		if err := debug.Enable(); err != nil {
			return fmt.Errorf("debug log: %w", err)
		}
		defer debug.Disable()
	}

	s, err := song.Load(args[0])
	if err != nil {
		return err
	}

	palette, err := theme.LoadOrDefault(cfg.Palette)
	if err != nil {
		return fmt.Errorf("palette: %w", err)
	}
	th := theme.New(palette)

	// MIDI output
	var out midi.Output = midi.NopOutput{}
	if cfg.OutputPort != "" {
		port, err := midi.OpenOutput(cfg.OutputPort)
		if err != nil {
			return err
		}
		defer port.Close()
		out = port
		debug.Log("main", "output %s", port.Name())
	} else {
		fmt.Fprintln(os.Stderr, "no output port configured (--out), playing silently")
	}

	manager := sequencer.NewManager(s, out, sequencer.Options{
		LeadIn:   cfg.LeadIn(),
		Keyboard: cfg.KeyboardRange,
		Speed:    cfg.Speed,
		WaitMode: cfg.WaitMode,
		Echo:     cfg.Echo,
	})

	presets, err := sequencer.DefaultPresetStore()
	if err != nil {
		debug.Log("main", "presets disabled: %v", err)
		presets = nil
	}
	if flags.lastPreset && presets != nil {
		p, err := presets.Load(s.Name, "")
		if err != nil {
			return err
		}
		if err := manager.ApplyPreset(p); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create MIDI device manager (handles hot-plug)
	var deviceMgr *midi.DeviceManager
	if !flags.noInput {
		deviceMgr = midi.NewDeviceManager(cfg.InputPort)
		go deviceMgr.Run(ctx)
	}
	go manager.Run(ctx)

	// Create and run TUI
	m := tui.NewModel(manager, deviceMgr, th, tui.Options{
		Keyboard:   cfg.KeyboardRange,
		RewindStep: cfg.RewindStep(),
		Presets:    presets,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
