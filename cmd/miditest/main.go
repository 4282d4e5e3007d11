package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/spf13/cobra"

	"fallingkeys/midi"
	"fallingkeys/sequencer"
	"fallingkeys/song"
)

var rootCmd = &cobra.Command{
	Use:   "miditest",
	Short: "MIDI test scripts",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all MIDI ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listPorts(cmd.OutOrStdout())
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <file.mid>",
	Short: "Summarize tracks, notes, programs and measures of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return info(cmd.OutOrStdout(), args[0])
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump <file.mid>",
	Short: "Print every scheduled event in playback order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := song.Load(args[0])
		if err != nil {
			return err
		}
		dump(cmd.OutOrStdout(), s, dumpStep)
		return nil
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll for keyboard connects and disconnects",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		pollDevices(cmd.OutOrStdout(), pollInput)
	},
}

var (
	dumpStep  time.Duration
	pollInput string
)

func init() {
	dumpCmd.Flags().DurationVar(&dumpStep, "step", 10*time.Millisecond,
		"Player update interval")
	pollCmd.Flags().StringVar(&pollInput, "in", "",
		"Only watch input ports containing this name")
	rootCmd.AddCommand(listCmd, infoCmd, dumpCmd, pollCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func listPorts(w io.Writer) error {
	fmt.Fprintln(w, "=== MIDI Input Ports ===")
	fmt.Fprintln(w, "(waiting up to 3 seconds...)")

	ins, outs, err := midi.PortNames(3 * time.Second)
	if err != nil {
		fmt.Fprintln(w, "\nTIMEOUT! CoreMIDI is hung.")
		fmt.Fprintln(w, "Fix: sudo killall coreaudiod midiserver")
		return err
	}
	for i, name := range ins {
		fmt.Fprintf(w, "  %d: %s\n", i, name)
	}
	fmt.Fprintln(w, "\n=== MIDI Output Ports ===")
	for i, name := range outs {
		fmt.Fprintf(w, "  %d: %s\n", i, name)
	}
	return nil
}

func info(w io.Writer, path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	s, err := song.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s (%s)\n", path, humanize.Bytes(uint64(st.Size())))
	fmt.Fprintf(w, "  format %d, %d ticks per quarter, %d tempo changes\n",
		s.Format, s.PPQ, len(s.Tempo.Events()))
	fmt.Fprintf(w, "  length %s, %s notes, %s measures\n",
		durafmt.Parse(s.LastNoteEnd().Round(time.Millisecond)).LimitFirstN(2),
		humanize.Comma(int64(s.NoteCount())),
		humanize.Comma(int64(len(s.Measures))))

	fmt.Fprintln(w, "\n=== Tracks ===")
	for _, t := range s.Tracks {
		kind := "melodic"
		switch {
		case len(t.Notes) == 0:
			kind = "no notes"
		case t.IsDrumOnly():
			kind = "drums"
		case t.HasDrums:
			kind = "mixed"
		}
		fmt.Fprintf(w, "  %2d  color %-2d %-8s %8s notes %8s events\n",
			t.ID, t.ColorID, kind, humanize.Comma(int64(len(t.Notes))), humanize.Comma(int64(len(t.Events))))
	}

	buckets := s.Programs.Buckets()
	if len(buckets) > 0 {
		fmt.Fprintln(w, "\n=== Program changes ===")
	}
	prev := song.DefaultPrograms
	for _, b := range buckets {
		var changes []string
		for ch, p := range b.Programs {
			if p != prev[ch] {
				changes = append(changes, fmt.Sprintf("ch%d %s", ch+1, sequencer.InstrumentName(uint8(ch), p)))
			}
		}
		if len(changes) > 0 {
			fmt.Fprintf(w, "  %10s  %s\n", b.Timestamp.Round(time.Millisecond), strings.Join(changes, ", "))
		}
		prev = b.Programs
	}
	return nil
}

// dump replays the song through a Player and prints what it emits.
func dump(w io.Writer, s *song.Song, step time.Duration) {
	if step <= 0 {
		step = 10 * time.Millisecond
	}
	p := sequencer.NewPlayer(s.Tracks, 0)
	for {
		for _, e := range p.Update(step) {
			fmt.Fprintf(w, "%10s  track %-2d ch%-2d %s\n",
				e.Timestamp.Round(time.Microsecond), e.TrackID, e.Channel+1, e.Message)
		}
		if p.IsFinished() {
			return
		}
	}
}

func pollDevices(w io.Writer, input string) {
	fmt.Fprintln(w, "Polling for keyboard changes every second...")
	fmt.Fprintln(w, "Connect/disconnect a keyboard to test. Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dm := midi.NewDeviceManager(input)
	go dm.Run(ctx)

	for event := range dm.Events() {
		stamp := time.Now().Format("15:04:05")
		switch event.Type {
		case midi.DeviceConnected:
			fmt.Fprintf(w, "[%s] connected %s\n", stamp, event.ID)
			go func(c midi.Controller) {
				for n := range c.NoteEvents() {
					fmt.Fprintf(w, "  %s %-4s vel %3d ch%d\n",
						c.ID(), sequencer.NoteName(n.Note), n.Velocity, n.Channel+1)
				}
			}(event.Controller)
		case midi.DeviceDisconnected:
			fmt.Fprintf(w, "[%s] disconnected %s\n", stamp, event.ID)
		}
	}
}
