package sequencer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPresetStore_SaveLoad(t *testing.T) {
	store := &PresetStore{Dir: t.TempDir()}

	if _, err := store.Load("song.mid", ""); err == nil {
		t.Error("expected error with no presets")
	}
	presets, err := store.List("song.mid")
	if err != nil || len(presets) != 0 {
		t.Fatalf("List = %v, %v", presets, err)
	}

	want := Preset{Modes: map[int]string{1: "human", 3: "auto"}, Hidden: []int{3}, Speed: 0.5, WaitMode: true}
	filename, err := store.Save("song.mid", want)
	if err != nil {
		t.Fatal(err)
	}

	got, err := store.Load("song.mid", "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Modes[1] != "human" || got.Speed != 0.5 || !got.WaitMode || len(got.Hidden) != 1 {
		t.Errorf("got %+v", got)
	}

	if err := store.Delete("song.mid", filename); err != nil {
		t.Fatal(err)
	}
	if presets, _ := store.List("song.mid"); len(presets) != 0 {
		t.Errorf("presets after delete = %v", presets)
	}
}

func TestPresetStore_ListSkipsForeignFiles(t *testing.T) {
	store := &PresetStore{Dir: t.TempDir()}
	dir := store.songDir("a song.mid")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"2024-01-01_10-00-00.json", "2024-03-01_10-00-00.json", "notes.json", "2024-02-01_10-00-00.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	presets, err := store.List("a song.mid")
	if err != nil {
		t.Fatal(err)
	}
	if len(presets) != 2 || presets[0].Filename != "2024-03-01_10-00-00.json" {
		t.Errorf("presets = %+v, want two, newest first", presets)
	}
	if filepath.Base(dir) != "a-song" {
		t.Errorf("song dir = %s", dir)
	}
}

func TestManager_PresetRoundTrip(t *testing.T) {
	m := NewManager(busySong(), nil, Options{})
	m.SetTrackMode(1, ModeHuman)
	m.SetTrackMode(3, ModeMute)
	m.SetTrackVisible(2, false)
	m.SetSpeed(0.75)
	m.SetWaitMode(true)
	p := m.Preset()

	other := NewManager(busySong(), nil, Options{})
	if err := other.ApplyPreset(&p); err != nil {
		t.Fatal(err)
	}

	snap := other.Snapshot()
	if snap.Tracks[1].Mode != ModeHuman || snap.Tracks[3].Mode != ModeMute || snap.Tracks[2].Mode != ModeAuto {
		t.Errorf("tracks = %+v", snap.Tracks)
	}
	if snap.Tracks[2].Visible || !snap.Tracks[1].Visible {
		t.Errorf("visibility = %+v", snap.Tracks)
	}
	if snap.Speed != 0.75 || !snap.WaitMode {
		t.Errorf("speed=%v wait=%v", snap.Speed, snap.WaitMode)
	}
}

func TestManager_ApplyPresetRejectsBadMode(t *testing.T) {
	m := NewManager(busySong(), nil, Options{})
	if err := m.ApplyPreset(&Preset{Modes: map[int]string{1: "loud"}}); err == nil {
		t.Error("expected error")
	}
}
