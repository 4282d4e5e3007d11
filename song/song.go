// Package song turns a decoded Standard MIDI File into wall-clock timelines:
// a tempo map, paired notes, projected events and a program map.
package song

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/remeh/sizedwaitgroup"
	"gitlab.com/gomidi/midi/v2/smf"
	"golang.org/x/sync/errgroup"

	"fallingkeys/debug"
)

// Load errors. Every failure while loading a file wraps one of these.
var (
	ErrIO                = errors.New("unable to read MIDI file")
	ErrParse             = errors.New("malformed MIDI file")
	ErrUnsupportedTiming = errors.New("unsupported timing: only metrical (ticks per quarter) files are supported")
	ErrNoTracks          = errors.New("MIDI file has no tracks")
	ErrSequentialFormat  = errors.New("unsupported format: sequential multi-song files are not supported")
)

// SMF format 2 holds independent sequences played one after the other.
const formatSequential = 2

// Song is a loaded file. All fields are read only after construction and
// may be shared between sessions.
type Song struct {
	Name     string
	Format   uint16
	PPQ      uint16
	Tempo    *TempoMap
	Tracks   []Track
	Programs *ProgramMap
	Measures []time.Duration

	firstNoteStart time.Duration
	lastNoteEnd    time.Duration
}

// Load reads and builds the file at path.
func Load(path string) (*Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Name = path
	return s, nil
}

// SMF header chunk: "MThd", length, format, track count, division.
const headerLen = 14

// Decode reads a Standard MIDI File from r and builds it.
func Decode(r io.Reader) (s *Song, err error) {
	br := bufio.NewReader(r)
	if err := checkDivision(br); err != nil {
		return nil, err
	}

	defer func() {
		if v := recover(); v != nil {
			s, err = nil, fmt.Errorf("%w: %v", ErrParse, v)
		}
	}()
	file, err := smf.ReadFrom(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return FromSMF(file)
}

// checkDivision rejects timecode files before smf.ReadFrom sees them, since
// the reader assumes metric ticks once the header is parsed. Short or
// foreign headers are left for the reader to report.
func checkDivision(br *bufio.Reader) error {
	hdr, err := br.Peek(headerLen)
	if err != nil || !bytes.Equal(hdr[:4], []byte("MThd")) {
		return nil
	}
	division := binary.BigEndian.Uint16(hdr[12:14])
	if division&0x8000 != 0 {
		return fmt.Errorf("%w (timecode division %#04x)", ErrUnsupportedTiming, division)
	}
	return nil
}

// FromSMF validates an already decoded file and builds it.
func FromSMF(file *smf.SMF) (*Song, error) {
	var ppq uint16
	switch tf := file.TimeFormat.(type) {
	case smf.MetricTicks:
		ppq = tf.Resolution()
	default:
		return nil, fmt.Errorf("%w (%v)", ErrUnsupportedTiming, file.TimeFormat)
	}
	if ppq == 0 {
		return nil, fmt.Errorf("%w: zero ticks per quarter note", ErrParse)
	}
	if len(file.Tracks) == 0 {
		return nil, ErrNoTracks
	}
	if file.Format() == formatSequential {
		return nil, ErrSequentialFormat
	}

	s := Build(file.Tracks, ppq)
	s.Format = file.Format()
	return s, nil
}

// Build computes every timeline of a decoded file. Tracks are built in
// parallel; within a track notes and events are built concurrently.
func Build(tracks []smf.Track, ppq uint16) *Song {
	start := time.Now()
	tempo := BuildTempoMap(tracks, ppq)

	built := make([]Track, len(tracks))
	wg := sizedwaitgroup.New(runtime.NumCPU())
	for i := range tracks {
		wg.Add()
		go func() {
			defer wg.Done()
			built[i] = buildTrack(tracks[i], tempo, i)
		}()
	}
	wg.Wait()

	colorID := 0
	for i := range built {
		built[i].setColorID(colorID)
		if len(built[i].Notes) > 0 {
			colorID++
		}
	}

	s := &Song{
		PPQ:      ppq,
		Tempo:    tempo,
		Tracks:   built,
		Programs: BuildProgramMap(built, DefaultPrograms),
	}
	s.firstNoteStart, s.lastNoteEnd = noteBounds(built)
	s.Measures = buildMeasures(tempo, s.lastNoteEnd)

	debug.Log("song", "built %d tracks ppq=%d tempos=%d in %s", len(built), ppq, len(tempo.events), time.Since(start))
	return s
}

func buildTrack(track smf.Track, tempo *TempoMap, id int) Track {
	var (
		notes []Note
		proj  Projection
		g     errgroup.Group
	)
	g.Go(func() error {
		notes = BuildNotes(track, tempo, id)
		return nil
	})
	g.Go(func() error {
		proj = BuildEvents(track, tempo, id)
		return nil
	})
	g.Wait()

	return Track{
		ID:                id,
		Notes:             notes,
		Events:            proj.Events,
		Programs:          proj.Programs,
		HasDrums:          proj.HasDrums,
		HasOtherThanDrums: proj.HasOtherThanDrums,
	}
}

// FirstNoteStart is the earliest note start across all tracks.
func (s *Song) FirstNoteStart() time.Duration {
	return s.firstNoteStart
}

// LastNoteEnd is the latest note end across all tracks.
func (s *Song) LastNoteEnd() time.Duration {
	return s.lastNoteEnd
}

// NoteCount returns the number of notes over all tracks.
func (s *Song) NoteCount() int {
	n := 0
	for i := range s.Tracks {
		n += len(s.Tracks[i].Notes)
	}
	return n
}

// noteBounds returns the first start and last end over all notes, or zeros
// when there are no notes.
func noteBounds(tracks []Track) (first, last time.Duration) {
	seen := false
	for i := range tracks {
		for _, n := range tracks[i].Notes {
			if !seen || n.Start < first {
				first = n.Start
			}
			if !seen || n.End > last {
				last = n.End
			}
			seen = true
		}
	}
	return first, last
}

// buildMeasures returns a boundary every four quarter notes up to end.
func buildMeasures(tempo *TempoMap, end time.Duration) []time.Duration {
	step := uint64(tempo.PPQ()) * 4
	if step == 0 || end <= 0 {
		return nil
	}

	var measures []time.Duration
	for pulses := uint64(0); ; pulses += step {
		t := tempo.PulsesToDuration(pulses)
		if t > end {
			break
		}
		measures = append(measures, t)
	}
	return measures
}
