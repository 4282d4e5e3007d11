package sequencer

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"fallingkeys/debug"
	"fallingkeys/midi"
	"fallingkeys/song"
)

// Playback speed limits
const (
	MinSpeed = 0.1
	MaxSpeed = 2.0
)

// tickRate is how often Run advances the player.
const tickRate = 5 * time.Millisecond

// UI refresh rate
const uiFPS = 30

// Options configures a playback session.
type Options struct {
	LeadIn   time.Duration
	Keyboard KeyRange
	Speed    float64
	WaitMode bool
	Echo     bool // send the user's notes to the output
}

// Manager owns one playback session: the player, the play-along matcher and
// the MIDI output. All methods are safe for concurrent use.
type Manager struct {
	song      *song.Song
	player    *Player
	playAlong *PlayAlong
	out       midi.Output

	tracks []TrackState
	byID   map[int]int // track ID -> index in tracks

	speed    float64
	waitMode bool
	echo     bool
	started  bool

	fileKeys map[uint8]int // held by auto/human tracks, value is the color id
	userKeys map[uint8]struct{}

	inputChan chan midi.NoteEvent
	now       func() time.Time
	mu        sync.Mutex

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// NewManager creates a session positioned at the start of s.
func NewManager(s *song.Song, out midi.Output, opts Options) *Manager {
	if out == nil {
		out = midi.NopOutput{}
	}
	if opts.Speed == 0 {
		opts.Speed = 1
	}
	if opts.Keyboard == (KeyRange{}) {
		opts.Keyboard = FullRange
	}

	m := &Manager{
		song:       s,
		player:     NewPlayer(s.Tracks, opts.LeadIn),
		playAlong:  NewPlayAlong(opts.Keyboard),
		out:        out,
		tracks:     defaultTrackStates(s.Tracks),
		byID:       make(map[int]int, len(s.Tracks)),
		speed:      clampSpeed(opts.Speed),
		waitMode:   opts.WaitMode,
		echo:       opts.Echo,
		fileKeys:   make(map[uint8]int),
		userKeys:   make(map[uint8]struct{}),
		inputChan:  make(chan midi.NoteEvent, 32),
		now:        time.Now,
		UpdateChan: make(chan struct{}, 1),
	}
	for i, ts := range m.tracks {
		m.byID[ts.TrackID] = i
	}
	return m
}

func clampSpeed(s float64) float64 {
	return max(MinSpeed, min(MaxSpeed, s))
}

// Song returns the song being played.
func (m *Manager) Song() *song.Song {
	return m.song
}

// Run drives playback until ctx is cancelled (blocking - run in goroutine).
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(tickRate)
	uiTicker := time.NewTicker(time.Second / uiFPS)
	defer ticker.Stop()
	defer uiTicker.Stop()

	last := m.now()
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.silence()
			m.mu.Unlock()
			return
		case evt := <-m.inputChan:
			m.HandleNote(evt)
		case <-ticker.C:
			now := m.now()
			m.Step(now.Sub(last))
			last = now
		case <-uiTicker.C:
			m.notifyUpdate()
		}
	}
}

// SetInput consumes a keyboard's note events until its channel closes.
func (m *Manager) SetInput(ctrl midi.Controller) {
	if ctrl == nil {
		return
	}
	go func() {
		for evt := range ctrl.NoteEvents() {
			select {
			case m.inputChan <- evt:
			default:
				// Drop if channel full
			}
		}
	}()
}

// Step advances the session by delta of wall-clock time.
func (m *Manager) Step(delta time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		m.started = true
		m.replayPrograms()
	}

	m.playAlong.Update()
	if m.player.IsPaused() || m.waiting() {
		return
	}

	events := m.player.Update(time.Duration(float64(delta) * m.speed))
	for _, e := range events {
		m.dispatch(e)
	}
	if len(events) > 0 {
		m.notifyUpdate()
	}
}

// waiting reports whether wait mode is holding playback for the user.
func (m *Manager) waiting() bool {
	return m.waitMode && !m.playAlong.AreRequiredKeysPressed()
}

func (m *Manager) dispatch(e song.Event) {
	mode := ModeAuto
	if i, ok := m.byID[e.TrackID]; ok {
		mode = m.tracks[i].Mode
	}
	if mode == ModeMute {
		return
	}

	var ch, key, vel uint8
	isNote := true
	switch {
	case e.Message.GetNoteStart(&ch, &key, &vel):
		m.fileKeys[key] = e.TrackColorID
	case e.Message.GetNoteEnd(&ch, &key):
		delete(m.fileKeys, key)
	default:
		isNote = false
	}

	if mode == ModeHuman && isNote {
		m.playAlong.FileEvent(e.Message)
		return
	}
	m.send(e.Channel, e.Message)
}

func (m *Manager) send(channel uint8, msg gomidi.Message) {
	if err := m.out.MidiEvent(channel, msg); err != nil {
		debug.LogEvery(100, "output", "send %s: %v", msg, err)
	}
}

// HandleNote feeds a live keyboard note to the matcher, echoing it when
// enabled.
func (m *Manager) HandleNote(evt midi.NoteEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := evt.Message()
	if evt.On {
		m.userKeys[evt.Note] = struct{}{}
	} else {
		delete(m.userKeys, evt.Note)
	}
	m.playAlong.UserEvent(msg)
	if m.echo {
		m.send(evt.Channel, msg)
	}
	m.notifyUpdate()
}

// replayPrograms sends the instrument of every channel at the playhead.
func (m *Manager) replayPrograms() {
	progs := m.song.Programs.ProgramsAt(m.player.SongTime())
	for ch, p := range progs {
		m.send(uint8(ch), gomidi.ProgramChange(uint8(ch), p))
	}
}

// silence stops every sounding note and forgets held file keys.
func (m *Manager) silence() {
	if err := m.out.StopAll(); err != nil {
		debug.Log("output", "stop all: %v", err)
	}
	clear(m.fileKeys)
}

// afterSeek restores a clean state at the new playhead.
func (m *Manager) afterSeek() {
	m.silence()
	m.playAlong.Reset()
	m.replayPrograms()
	m.notifyUpdate()
}

// Pause stops playback and silences the output.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setPaused(true)
}

// Resume continues playback.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setPaused(false)
}

// TogglePause flips between paused and playing.
func (m *Manager) TogglePause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setPaused(!m.player.IsPaused())
}

// setPaused must be called with m.mu held.
func (m *Manager) setPaused(paused bool) {
	if paused {
		m.player.Pause()
		m.silence()
	} else {
		m.player.Resume()
	}
	m.notifyUpdate()
}

// Seek moves the playhead to t (clamped to the song).
func (m *Manager) Seek(t time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.player.SetTime(t)
	m.afterSeek()
}

// SeekPercentage moves the playhead to a fraction of the song.
func (m *Manager) SeekPercentage(pct float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.player.SetPercentage(pct)
	m.afterSeek()
}

// Rewind moves the playhead back by delta; a negative delta fast-forwards.
func (m *Manager) Rewind(delta time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.player.Rewind(delta)
	m.afterSeek()
}

// SetSpeed sets the playback speed multiplier
func (m *Manager) SetSpeed(speed float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speed = clampSpeed(speed)
	debug.Log("session", "speed %.2f", m.speed)
	m.notifyUpdate()
}

// Speed returns the playback speed multiplier.
func (m *Manager) Speed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

// SetWaitMode toggles waiting for the user on human tracks.
func (m *Manager) SetWaitMode(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitMode = on
	m.notifyUpdate()
}

// SetEcho toggles sending the user's notes to the output.
func (m *Manager) SetEcho(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echo = on
}

// SetTrackMode changes who plays a track.
func (m *Manager) SetTrackMode(trackID int, mode TrackMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID[trackID]
	if !ok {
		return fmt.Errorf("no track %d", trackID)
	}
	if m.setModes(map[int]TrackMode{i: mode}) {
		m.notifyUpdate()
	}
	return nil
}

// setModes applies modes by track index and reports whether any changed.
// Must be called with m.mu held.
func (m *Manager) setModes(modes map[int]TrackMode) bool {
	changed := false
	for i, mode := range modes {
		if m.tracks[i].Mode == mode {
			continue
		}
		m.tracks[i].Mode = mode
		changed = true
		debug.Log("session", "track %d -> %s", m.tracks[i].TrackID, mode)
	}
	if changed {
		// Notes already started on these tracks would hang or stay required.
		m.silence()
		m.playAlong.Reset()
	}
	return changed
}

// CycleTrackMode advances a track to its next mode.
func (m *Manager) CycleTrackMode(trackID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID[trackID]
	if !ok {
		return fmt.Errorf("no track %d", trackID)
	}
	if m.setModes(map[int]TrackMode{i: m.tracks[i].Mode.Next()}) {
		m.notifyUpdate()
	}
	return nil
}

// PlayAlongAll hands every track with melodic notes to the user. Drum-only
// tracks keep playing automatically.
// It returns the number of tracks handed over.
func (m *Manager) PlayAlongAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	modes := make(map[int]TrackMode)
	for i, t := range m.song.Tracks {
		if len(t.Notes) == 0 || t.IsDrumOnly() {
			continue
		}
		modes[i] = ModeHuman
	}
	if m.setModes(modes) {
		m.notifyUpdate()
	}
	return len(modes)
}

// SetTrackVisible shows or hides a track's notes.
func (m *Manager) SetTrackVisible(trackID int, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID[trackID]
	if !ok {
		return fmt.Errorf("no track %d", trackID)
	}
	m.tracks[i].Visible = visible
	m.notifyUpdate()
	return nil
}

// notifyUpdate notifies TUI without blocking
func (m *Manager) notifyUpdate() {
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}

// Snapshot is a consistent view of the session for rendering.
type Snapshot struct {
	Time       time.Duration
	LeadIn     time.Duration
	SongTime   time.Duration
	Length     time.Duration
	Percentage float64
	Paused     bool
	Finished   bool
	Waiting    bool

	Speed    float64
	WaitMode bool
	Echo     bool

	FileKeys     map[uint8]int // key -> track color id
	UserKeys     []uint8
	RequiredKeys []uint8
	Stats        PlayAlongStats

	Tracks   []TrackState
	Programs song.Programs
}

// Snapshot copies the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	fileKeys := make(map[uint8]int, len(m.fileKeys))
	for k, v := range m.fileKeys {
		fileKeys[k] = v
	}
	userKeys := make([]uint8, 0, len(m.userKeys))
	for k := range m.userKeys {
		userKeys = append(userKeys, k)
	}
	slices.Sort(userKeys)

	return Snapshot{
		Time:         m.player.Time(),
		LeadIn:       m.player.LeadIn(),
		SongTime:     m.player.SongTime(),
		Length:       m.player.Length(),
		Percentage:   m.player.Percentage(),
		Paused:       m.player.IsPaused(),
		Finished:     m.player.IsFinished(),
		Waiting:      m.waiting(),
		Speed:        m.speed,
		WaitMode:     m.waitMode,
		Echo:         m.echo,
		FileKeys:     fileKeys,
		UserKeys:     userKeys,
		RequiredKeys: m.playAlong.RequiredKeys(),
		Stats:        m.playAlong.Stats(),
		Tracks:       slices.Clone(m.tracks),
		Programs:     m.song.Programs.ProgramsAt(m.player.SongTime()),
	}
}
