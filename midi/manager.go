package midi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"fallingkeys/debug"
)

// ErrPortScanTimeout is returned when the MIDI backend does not answer.
var ErrPortScanTimeout = errors.New("MIDI port scan timed out")

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DeviceManager handles hot-plug detection of MIDI keyboards
type DeviceManager struct {
	inputName   string // preferred input port, "" picks the first real one
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration
}

// NewDeviceManager creates a new device manager
func NewDeviceManager(inputName string) *DeviceManager {
	return &DeviceManager{
		inputName:   inputName,
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	copy := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		copy[k] = v
	}
	return copy
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

type portsResult struct {
	inPorts  []drivers.In
	outPorts []drivers.Out
}

// getPorts lists ports with a timeout (CoreMIDI can hang)
func getPorts(timeout time.Duration) (portsResult, error) {
	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	select {
	case result := <-ch:
		return result, nil
	case <-time.After(timeout):
		return portsResult{}, ErrPortScanTimeout
	}
}

// PortNames returns the names of every input and output port.
func PortNames(timeout time.Duration) (ins, outs []string, err error) {
	ports, err := getPorts(timeout)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range ports.inPorts {
		ins = append(ins, p.String())
	}
	for _, p := range ports.outPorts {
		outs = append(outs, p.String())
	}
	return ins, outs, nil
}

func (dm *DeviceManager) scan() {
	ports, err := getPorts(3 * time.Second)
	if err != nil {
		// User needs to run: sudo killall coreaudiod midiserver
		debug.Log("devices", "scan skipped: %v", err)
		return
	}

	// Build map of what we see now
	seenIDs := make(map[string]bool)

	for i, inPort := range ports.inPorts {
		id := inPort.String()
		if !matchPort(id, dm.inputName) {
			continue
		}
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		kb, err := NewKeyboardController(id, ports.inPorts[i])
		if err != nil {
			debug.Log("devices", "open %s: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = kb
		dm.mu.Unlock()

		debug.Log("devices", "connected %s", id)
		dm.events <- DeviceEvent{
			Type:       DeviceConnected,
			Controller: kb,
			ID:         id,
		}
	}

	// Check for disconnects
	dm.mu.Lock()
	var toRemove []string
	for id := range dm.controllers {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		c := dm.controllers[id]
		c.Close()
		delete(dm.controllers, id)
		debug.Log("devices", "disconnected %s", id)
		dm.events <- DeviceEvent{
			Type: DeviceDisconnected,
			ID:   id,
		}
	}
	dm.mu.Unlock()
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

// matchPort reports whether a port should be used as keyboard input. With
// no preference every port except loopback "through" ports matches.
func matchPort(name, want string) bool {
	name = strings.ToLower(name)
	if want == "" {
		return !strings.Contains(name, "through")
	}
	return strings.Contains(name, strings.ToLower(want))
}
