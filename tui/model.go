package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/hako/durafmt"

	"fallingkeys/debug"
	"fallingkeys/midi"
	"fallingkeys/sequencer"
	"fallingkeys/theme"
	"fallingkeys/widgets"
)

const (
	speedStep   = 0.1
	fallingStep = 50 * time.Millisecond // song time per falling row
	minRows     = 4
	chromeLines = 9 // everything but the falling view and track list
)

// Options are the view settings taken from the config.
type Options struct {
	Keyboard   sequencer.KeyRange
	RewindStep time.Duration
	Presets    *sequencer.PresetStore // nil disables saving
}

type Model struct {
	Manager   *sequencer.Manager
	DeviceMgr *midi.DeviceManager // nil without a keyboard
	Theme     *theme.Theme

	opts     Options
	spans    [][]widgets.NoteSpan // per track, in song time
	channels []uint8              // first channel used by each track
	selected int                  // index into the song's tracks
	keyboard string               // connected input port
	status   string
	width    int
	height   int
	quitting bool
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(manager *sequencer.Manager, deviceMgr *midi.DeviceManager, th *theme.Theme, opts Options) Model {
	if opts.Keyboard == (sequencer.KeyRange{}) {
		opts.Keyboard = sequencer.PianoRange
	}
	if opts.RewindStep <= 0 {
		opts.RewindStep = 5 * time.Second
	}

	tracks := manager.Song().Tracks
	m := Model{
		Manager:   manager,
		DeviceMgr: deviceMgr,
		Theme:     th,
		opts:      opts,
		spans:     make([][]widgets.NoteSpan, len(tracks)),
		channels:  make([]uint8, len(tracks)),
		height:    30,
	}
	for i, t := range tracks {
		color := theme.TrackColor(t.ColorID)
		for _, n := range t.Notes {
			m.spans[i] = append(m.spans[i], widgets.NoteSpan{Key: n.Key, Start: n.Start, End: n.End, Color: color})
		}
		if len(t.Notes) > 0 {
			m.channels[i] = t.Notes[0].Channel
		}
	}
	m.selected = m.nextTrack(-1, 1)
	return m
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForUpdates(m.Manager)}
	if m.DeviceMgr != nil {
		cmds = append(cmds, ListenForDevices(m.DeviceMgr))
	}
	return tea.Batch(cmds...)
}

// nextTrack returns the next track with notes after from in direction dir,
// or from when there is none.
func (m Model) nextTrack(from, dir int) int {
	tracks := m.Manager.Song().Tracks
	for i := from + dir; i >= 0 && i < len(tracks); i += dir {
		if len(tracks[i].Notes) > 0 {
			return i
		}
	}
	if from < 0 {
		return 0
	}
	return from
}

func (m Model) selectedID() (int, bool) {
	tracks := m.Manager.Song().Tracks
	if m.selected < 0 || m.selected >= len(tracks) {
		return 0, false
	}
	return tracks[m.selected].ID, true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			m.keyboard = event.ID
			m.Manager.SetInput(event.Controller)
			m.status = "connected " + event.ID
		case midi.DeviceDisconnected:
			if m.keyboard == event.ID {
				m.keyboard = ""
			}
			m.status = "disconnected " + event.ID
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.Manager.Snapshot()

	switch key := msg.String(); key {
	case "q", "ctrl+c":
		m.quitting = true
		m.Manager.Pause()
		return m, tea.Quit

	case " ", "space":
		m.Manager.TogglePause()

	case "left":
		m.Manager.Rewind(m.opts.RewindStep)

	case "right":
		m.Manager.Rewind(-m.opts.RewindStep)

	case "0", "1", "2", "3", "4", "5", "6", "7", "8", "9":
		m.Manager.SeekPercentage(float64(key[0]-'0') / 10)

	case "+", "=":
		m.Manager.SetSpeed(snap.Speed + speedStep)

	case "-", "_":
		m.Manager.SetSpeed(snap.Speed - speedStep)

	case "w":
		m.Manager.SetWaitMode(!snap.WaitMode)

	case "e":
		m.Manager.SetEcho(!snap.Echo)

	case "up", "k":
		m.selected = m.nextTrack(m.selected, -1)

	case "down", "j":
		m.selected = m.nextTrack(m.selected, 1)

	case "tab", "m":
		if id, ok := m.selectedID(); ok {
			m.Manager.CycleTrackMode(id)
		}

	case "v":
		if id, ok := m.selectedID(); ok && m.selected < len(snap.Tracks) {
			m.Manager.SetTrackVisible(id, !snap.Tracks[m.selected].Visible)
		}

	case "h":
		if n := m.Manager.PlayAlongAll(); n > 0 {
			m.status = fmt.Sprintf("%d melodic tracks set to human", n)
		} else {
			m.status = "no melodic tracks to play"
		}

	case "s":
		m.status = m.savePreset()
	}
	return m, nil
}

func (m Model) savePreset() string {
	if m.opts.Presets == nil {
		return "presets disabled"
	}
	name, err := m.opts.Presets.Save(m.Manager.Song().Name, m.Manager.Preset())
	if err != nil {
		debug.Log("tui", "save preset: %v", err)
		return "save failed: " + err.Error()
	}
	return "saved preset " + name
}

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	return durafmt.Parse(d.Truncate(time.Second)).LimitFirstN(2).Format(shortUnits)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	snap := m.Manager.Snapshot()
	s := m.Manager.Song()
	th := m.Theme

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(th.Warning())
	selectedStyle := lipgloss.NewStyle().Foreground(th.Cursor())

	// Header
	playState := "PLAY"
	switch {
	case snap.Finished:
		playState = "END"
	case snap.Paused:
		playState = "PAUSE"
	case snap.Waiting:
		playState = "WAIT"
	}
	flags := ""
	if snap.WaitMode {
		flags += "  wait"
	}
	if snap.Echo {
		flags += "  echo"
	}
	if m.keyboard != "" {
		flags += "  kb:" + m.keyboard
	}
	header := headerStyle.Render(fmt.Sprintf("fallingkeys  %s  %s", filepath.Base(s.Name), playState)) +
		dimStyle.Render(fmt.Sprintf("  %s / %s  x%.2f%s",
			formatDuration(snap.SongTime), formatDuration(s.LastNoteEnd()), snap.Speed, flags))

	colors := widgets.KeyboardColors{
		Idle:     th.Palette.Lookup(theme.RoleFG),
		User:     th.Palette.Lookup(theme.RoleActive),
		Required: th.Palette.Lookup(theme.RoleWarning),
		Grid:     th.Palette.Lookup(theme.RoleSurface),
	}
	low, high := m.opts.Keyboard.Low, m.opts.Keyboard.High

	bar := widgets.ProgressBar{
		Width:   int(high-low) + 1,
		Percent: snap.Percentage,
		Full:    th.Symbols.BarFull,
		Empty:   th.Symbols.BarEmpty,
		Head:    th.Symbols.BarHead,
		Color:   th.Palette.Lookup(theme.RoleAccent),
		Dim:     th.Palette.Lookup(theme.RoleMuted),
	}

	// Falling notes of visible tracks
	var spans []widgets.NoteSpan
	for i, ts := range snap.Tracks {
		if ts.Visible && ts.Mode != sequencer.ModeMute {
			spans = append(spans, m.spans[i]...)
		}
	}
	trackLines := m.trackList(snap, dimStyle, selectedStyle)
	falling := widgets.Falling{
		Low:    low,
		High:   high,
		Rows:   max(minRows, m.height-chromeLines-len(trackLines)),
		Now:    snap.Time - snap.LeadIn,
		Step:   fallingStep,
		Notes:  spans,
		Colors: colors,
	}

	fileKeys := make(map[uint8][3]uint8, len(snap.FileKeys))
	for key, colorID := range snap.FileKeys {
		fileKeys[key] = theme.TrackColor(colorID)
	}
	kb := widgets.Keyboard{
		Low:      low,
		High:     high,
		FileKeys: fileKeys,
		UserKeys: snap.UserKeys,
		Required: snap.RequiredKeys,
		Colors:   colors,
		Symbols: widgets.KeyboardSymbols{
			WhiteKey: th.Symbols.WhiteKey,
			BlackKey: th.Symbols.BlackKey,
			Held:     th.Symbols.Held,
			Required: th.Symbols.Required,
		},
	}

	// Play-along status
	playAlong := fmt.Sprintf("hits %d  misses %d", snap.Stats.Hits, snap.Stats.Misses)
	if len(snap.RequiredKeys) > 0 {
		names := make([]string, len(snap.RequiredKeys))
		for i, key := range snap.RequiredKeys {
			names[i] = sequencer.NoteName(key)
		}
		playAlong += warnStyle.Render("  play " + strings.Join(names, " "))
	}

	help := dimStyle.Render(widgets.RenderKeyLine([]widgets.KeyBinding{
		{Key: "space", Desc: "pause"},
		{Key: "←/→", Desc: "rewind/skip"},
		{Key: "0-9", Desc: "seek"},
		{Key: "+/-", Desc: "speed"},
		{Key: "w", Desc: "wait"},
		{Key: "e", Desc: "echo"},
		{Key: "↑/↓", Desc: "track"},
		{Key: "m", Desc: "mode"},
		{Key: "v", Desc: "show"},
		{Key: "h", Desc: "play all"},
		{Key: "s", Desc: "save"},
		{Key: "q", Desc: "quit"},
	}))

	// Build output
	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n")
	out.WriteString(bar.View())
	out.WriteString("\n")
	out.WriteString(falling.View())
	out.WriteString("\n")
	out.WriteString(kb.View())
	out.WriteString("\n")
	out.WriteString(playAlong)
	out.WriteString("\n\n")
	out.WriteString(strings.Join(trackLines, "\n"))
	out.WriteString("\n\n")
	out.WriteString(help)
	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render(m.status))
	}

	return out.String()
}

// trackList renders one line per track with notes.
func (m Model) trackList(snap sequencer.Snapshot, dimStyle, selectedStyle lipgloss.Style) []string {
	tracks := m.Manager.Song().Tracks
	var lines []string
	for i, t := range tracks {
		if len(t.Notes) == 0 || i >= len(snap.Tracks) {
			continue
		}
		ts := snap.Tracks[i]

		cursor := "  "
		if i == m.selected {
			cursor = selectedStyle.Render("> ")
		}
		instrument := sequencer.InstrumentName(m.channels[i], snap.Programs[m.channels[i]&0x0F])
		if t.IsDrumOnly() {
			instrument = "Drums"
		}
		line := fmt.Sprintf("%s %-5s %-24s ch%-2d %5d notes",
			widgets.RenderSwatch(theme.TrackColor(t.ColorID)), ts.Mode, instrument, m.channels[i]+1, len(t.Notes))
		if !ts.Visible || ts.Mode == sequencer.ModeMute {
			line = dimStyle.Render(line)
		}
		lines = append(lines, cursor+line)
	}
	return lines
}
