package sequencer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const presetTimeFormat = "2006-01-02_15-04-05"

// Preset is the saved practice setup for one song.
type Preset struct {
	Modes    map[int]string `json:"modes"` // track ID -> TrackMode name
	Hidden   []int          `json:"hidden,omitempty"`
	Speed    float64        `json:"speed"`
	WaitMode bool           `json:"waitMode"`
}

// PresetInfo represents a saved preset file (for listing)
type PresetInfo struct {
	Filename  string
	Timestamp time.Time
}

// PresetStore keeps timestamped presets, one folder per song.
type PresetStore struct {
	Dir string
}

// DefaultPresetStore returns the store under the user's config directory
func DefaultPresetStore() (*PresetStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &PresetStore{Dir: filepath.Join(home, ".config", "fallingkeys", "presets")}, nil
}

func (s *PresetStore) songDir(songName string) string {
	name := sanitizeFilename(songName)
	if name == "" {
		name = "untitled"
	}
	return filepath.Join(s.Dir, name)
}

// List returns the presets of a song, newest first
func (s *PresetStore) List(songName string) ([]PresetInfo, error) {
	entries, err := os.ReadDir(s.songDir(songName))
	if err != nil {
		if os.IsNotExist(err) {
			return []PresetInfo{}, nil
		}
		return nil, err
	}

	var presets []PresetInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ts, err := time.Parse(presetTimeFormat, strings.TrimSuffix(name, ".json"))
		if err != nil {
			// Not a timestamped file, skip
			continue
		}
		presets = append(presets, PresetInfo{Filename: name, Timestamp: ts})
	}

	sort.Slice(presets, func(i, j int) bool {
		return presets[i].Timestamp.After(presets[j].Timestamp)
	})
	return presets, nil
}

// Save writes p as a new timestamped preset and returns its filename.
func (s *PresetStore) Save(songName string, p Preset) (string, error) {
	dir := s.songDir(songName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}

	filename := time.Now().Format(presetTimeFormat) + ".json"
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return "", err
	}
	return filename, nil
}

// Load reads a preset (or the most recent if filename is empty).
func (s *PresetStore) Load(songName, filename string) (*Preset, error) {
	if filename == "" {
		presets, err := s.List(songName)
		if err != nil || len(presets) == 0 {
			return nil, fmt.Errorf("no presets found for %s", songName)
		}
		filename = presets[0].Filename
	}

	data, err := os.ReadFile(filepath.Join(s.songDir(songName), filename))
	if err != nil {
		return nil, err
	}

	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("preset %s: %w", filename, err)
	}
	return &p, nil
}

// Delete removes a preset file
func (s *PresetStore) Delete(songName, filename string) error {
	return os.Remove(filepath.Join(s.songDir(songName), filename))
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	replacer := strings.NewReplacer(
		" ", "-", "/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	)
	return replacer.Replace(name)
}

// Preset captures the current track modes, visibility and tempo settings.
func (m *Manager) Preset() Preset {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := Preset{
		Modes:    make(map[int]string, len(m.tracks)),
		Speed:    m.speed,
		WaitMode: m.waitMode,
	}
	for _, ts := range m.tracks {
		p.Modes[ts.TrackID] = ts.Mode.String()
		if !ts.Visible {
			p.Hidden = append(p.Hidden, ts.TrackID)
		}
	}
	return p
}

// ApplyPreset restores a saved setup. Tracks the preset does not know keep
// their current settings.
func (m *Manager) ApplyPreset(p *Preset) error {
	m.mu.Lock()
	modes := make(map[int]TrackMode, len(p.Modes))
	for id, name := range p.Modes {
		mode, err := ParseTrackMode(name)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		if i, ok := m.byID[id]; ok {
			modes[i] = mode
		}
	}
	m.setModes(modes)

	hidden := make(map[int]bool, len(p.Hidden))
	for _, id := range p.Hidden {
		hidden[id] = true
	}
	for i := range m.tracks {
		if len(m.song.Tracks[i].Notes) > 0 {
			m.tracks[i].Visible = !hidden[m.tracks[i].TrackID]
		}
	}
	m.waitMode = p.WaitMode
	m.notifyUpdate()
	m.mu.Unlock()

	if p.Speed != 0 {
		m.SetSpeed(p.Speed)
	}
	return nil
}
