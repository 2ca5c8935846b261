package focus

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
)

// i3-ipc protocol constants, shared by sway and i3.
const (
	ipcMagic = "i3-ipc"

	msgSubscribe = 2
	msgGetTree   = 4

	// Events carry the high bit; the low bits select the event class.
	eventWindow = 0x80000003
)

// SwayOracle tracks the most-recently-focused app over the compositor's
// IPC socket. A reader goroutine consumes window events; Current is a
// mutex-guarded read of the last focus change.
type SwayOracle struct {
	conn   net.Conn
	logger *slog.Logger

	mu      sync.Mutex
	current string
	haveApp bool

	done chan struct{}
}

// SocketPath returns the compositor IPC socket from the environment, or
// empty when no compositor advertises one.
func SocketPath() string {
	if p := os.Getenv("SWAYSOCK"); p != "" {
		return p
	}
	return os.Getenv("I3SOCK")
}

// NewSway connects to the IPC socket, seeds the focused app from the
// current tree and subscribes to window events.
func NewSway(socketPath string, logger *slog.Logger) (*SwayOracle, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial compositor ipc: %w", err)
	}

	o := &SwayOracle{conn: conn, logger: logger, done: make(chan struct{})}

	if err := writeMessage(conn, msgGetTree, nil); err != nil {
		conn.Close()
		return nil, err
	}
	msgType, payload, err := readMessage(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if msgType == msgGetTree {
		if app, ok := focusedApp(payload); ok {
			o.current, o.haveApp = app, true
		}
	}

	if err := writeMessage(conn, msgSubscribe, []byte(`["window"]`)); err != nil {
		conn.Close()
		return nil, err
	}
	msgType, payload, err = readMessage(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	var sub struct {
		Success bool `json:"success"`
	}
	if msgType != msgSubscribe || json.Unmarshal(payload, &sub) != nil || !sub.Success {
		conn.Close()
		return nil, fmt.Errorf("window event subscription refused")
	}

	go o.readLoop()
	return o, nil
}

// Current returns the app_id (or X11 class under Xwayland) of the last
// focused window.
func (o *SwayOracle) Current() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current, o.haveApp
}

// Close tears down the IPC connection and stops the reader.
func (o *SwayOracle) Close() error {
	select {
	case <-o.done:
		return nil
	default:
	}
	close(o.done)
	return o.conn.Close()
}

func (o *SwayOracle) readLoop() {
	for {
		msgType, payload, err := readMessage(o.conn)
		if err != nil {
			select {
			case <-o.done:
			default:
				o.logger.Warn("focus tracking stopped", "error", err)
			}
			return
		}
		if msgType != eventWindow {
			continue
		}
		app, ok := windowEventApp(payload)
		if !ok {
			continue
		}
		o.mu.Lock()
		o.current, o.haveApp = app, true
		o.mu.Unlock()
	}
}

// container is the subset of the sway node shape the oracle needs.
type container struct {
	Focused          bool        `json:"focused"`
	AppID            *string     `json:"app_id"`
	WindowProperties *struct {
		Class string `json:"class"`
	} `json:"window_properties"`
	Nodes         []container `json:"nodes"`
	FloatingNodes []container `json:"floating_nodes"`
}

func (c *container) app() (string, bool) {
	if c.AppID != nil && *c.AppID != "" {
		return *c.AppID, true
	}
	if c.WindowProperties != nil && c.WindowProperties.Class != "" {
		return c.WindowProperties.Class, true
	}
	return "", false
}

// focusedApp walks a GET_TREE reply for the focused leaf.
func focusedApp(payload []byte) (string, bool) {
	var root container
	if err := json.Unmarshal(payload, &root); err != nil {
		return "", false
	}
	return findFocused(&root)
}

func findFocused(c *container) (string, bool) {
	if c.Focused {
		return c.app()
	}
	for i := range c.Nodes {
		if app, ok := findFocused(&c.Nodes[i]); ok {
			return app, ok
		}
	}
	for i := range c.FloatingNodes {
		if app, ok := findFocused(&c.FloatingNodes[i]); ok {
			return app, ok
		}
	}
	return "", false
}

// windowEventApp extracts the app from a window event with change
// "focus". Other changes do not move focus.
func windowEventApp(payload []byte) (string, bool) {
	var ev struct {
		Change    string    `json:"change"`
		Container container `json:"container"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return "", false
	}
	if ev.Change != "focus" {
		return "", false
	}
	return ev.Container.app()
}

func writeMessage(w io.Writer, msgType uint32, payload []byte) error {
	header := make([]byte, len(ipcMagic)+8)
	copy(header, ipcMagic)
	binary.LittleEndian.PutUint32(header[6:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[10:], msgType)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write ipc header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write ipc payload: %w", err)
		}
	}
	return nil
}

func readMessage(r io.Reader) (uint32, []byte, error) {
	header := make([]byte, len(ipcMagic)+8)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	if string(header[:6]) != ipcMagic {
		return 0, nil, fmt.Errorf("bad ipc magic")
	}
	length := binary.LittleEndian.Uint32(header[6:])
	msgType := binary.LittleEndian.Uint32(header[10:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return msgType, payload, nil
}

// Detect returns the compositor oracle when an IPC socket is advertised,
// or Noop with a one-time warning when focus cannot be tracked.
func Detect(logger *slog.Logger) Oracle {
	path := SocketPath()
	if path == "" {
		logger.Warn("no compositor ipc socket; captures are unattributed and excluded-apps is inert")
		return Noop{}
	}
	o, err := NewSway(path, logger)
	if err != nil {
		logger.Warn("focus tracking unavailable", "error", err)
		return Noop{}
	}
	return o
}
