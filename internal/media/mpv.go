package media

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mdx/internal/shared"
)

const (
	commandTimeout = 3 * time.Second
	startTimeout   = 5 * time.Second

	observeDuration = 1
	observeTimePos  = 2
)

var _ Element = (*MPV)(nil)

// MPVOpts configures [StartMPV].
type MPVOpts struct {
	Path   string // mpv binary, defaults to "mpv" on $PATH
	Socket string // IPC socket path, defaults to a per-process file in the temp dir
	Logger *log.Logger
}

// MPV is an [Element] backed by an mpv process driven over its JSON IPC socket.
type MPV struct {
	conn   net.Conn
	cmd    *exec.Cmd
	socket string
	logger *log.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int
	pending map[int]chan ipcMessage
	loads   int
	closed  bool

	incoming chan Event
	events   chan Event
	done     chan struct{}
}

type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id"`
}

// ipcMessage is either a command reply (Event empty) or an asynchronous event.
type ipcMessage struct {
	RequestID int             `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	Event     string          `json:"event"`
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Reason    string          `json:"reason"`
	FileError string          `json:"file_error"`
}

// DefaultSocket is the IPC socket used when none is configured.
func DefaultSocket() string {
	return filepath.Join(os.TempDir(), "mdx-mpv-"+strconv.Itoa(os.Getpid())+".sock")
}

// StartMPV launches an idle mpv process without video output and connects to it.
func StartMPV(ctx context.Context, opts MPVOpts) (*MPV, error) {
	if opts.Path == "" {
		opts.Path = "mpv"
	}
	if opts.Socket == "" {
		opts.Socket = DefaultSocket()
	}

	bin, err := exec.LookPath(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: mpv not found: %v", shared.ErrPlaybackFailed, err)
	}

	os.Remove(opts.Socket)
	cmd := exec.CommandContext(ctx, bin,
		"--idle=yes",
		"--no-video",
		"--no-terminal",
		"--really-quiet",
		"--input-ipc-server="+opts.Socket,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start mpv: %v", shared.ErrPlaybackFailed, err)
	}

	deadline := time.Now().Add(startTimeout)
	for {
		m, err := DialMPV(opts.Socket, opts.Logger)
		if err == nil {
			m.cmd = cmd
			return m, nil
		}
		if time.Now().After(deadline) {
			cmd.Process.Kill()
			cmd.Wait()
			return nil, err
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// DialMPV connects to an mpv instance already listening on socket.
func DialMPV(socket string, logger *log.Logger) (*MPV, error) {
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to mpv: %v", shared.ErrPlaybackFailed, err)
	}
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	m := &MPV{
		conn:     conn,
		socket:   socket,
		logger:   logger,
		pending:  make(map[int]chan ipcMessage),
		incoming: make(chan Event),
		events:   make(chan Event),
		done:     make(chan struct{}),
	}
	go m.pump()
	go m.readLoop()

	for id, name := range map[int]string{observeDuration: "duration", observeTimePos: "time-pos"} {
		if _, err := m.command("observe_property", id, name); err != nil {
			m.Close()
			return nil, err
		}
	}
	return m, nil
}

// Load replaces the current file with url. mpv is paused first so playback waits for Play.
func (m *MPV) Load(url string) error {
	if _, err := m.command("set_property", "pause", true); err != nil {
		return err
	}
	if _, err := m.command("loadfile", url, "replace"); err != nil {
		// mpv emits no start-file for a rejected file; count it so Load numbering stays aligned.
		m.mu.Lock()
		m.loads++
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", shared.ErrMediaLoad, err)
	}
	return nil
}

func (m *MPV) Play() error {
	_, err := m.command("set_property", "pause", false)
	return err
}

func (m *MPV) Pause() error {
	_, err := m.command("set_property", "pause", true)
	return err
}

func (m *MPV) Seek(seconds float64) error {
	_, err := m.command("seek", seconds, "absolute")
	return err
}

func (m *MPV) SetVolume(level float64) error {
	_, err := m.command("set_property", "volume", level*100)
	return err
}

func (m *MPV) SetSpeed(rate float64) error {
	_, err := m.command("set_property", "speed", rate)
	return err
}

func (m *MPV) Stop() error {
	_, err := m.command("stop")
	return err
}

func (m *MPV) Events() <-chan Event {
	return m.events
}

// Close quits mpv when this element started it, then releases the connection.
func (m *MPV) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if m.cmd != nil {
		m.command("quit")
	}

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	err := m.conn.Close()
	<-m.done

	if m.cmd != nil {
		waited := make(chan error, 1)
		go func() { waited <- m.cmd.Wait() }()
		select {
		case <-waited:
		case <-time.After(commandTimeout):
			m.cmd.Process.Kill()
			<-waited
		}
		os.Remove(m.socket)
	}
	return err
}

func (m *MPV) command(args ...any) (json.RawMessage, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, shared.ErrMediaClosed
	}
	m.nextID++
	id := m.nextID
	reply := make(chan ipcMessage, 1)
	m.pending[id] = reply
	m.mu.Unlock()

	payload, err := json.Marshal(ipcRequest{Command: args, RequestID: id})
	if err != nil {
		m.forget(id)
		return nil, fmt.Errorf("failed to encode mpv command: %w", err)
	}

	m.writeMu.Lock()
	_, err = m.conn.Write(append(payload, '\n'))
	m.writeMu.Unlock()
	if err != nil {
		m.forget(id)
		return nil, fmt.Errorf("%w: %v", shared.ErrPlaybackFailed, err)
	}

	select {
	case msg := <-reply:
		if msg.Error != "success" {
			return nil, fmt.Errorf("%w: %v: %s", shared.ErrPlaybackFailed, args[0], msg.Error)
		}
		return msg.Data, nil
	case <-time.After(commandTimeout):
		m.forget(id)
		return nil, fmt.Errorf("%w: %v timed out", shared.ErrPlaybackFailed, args[0])
	case <-m.done:
		return nil, shared.ErrMediaClosed
	}
}

func (m *MPV) forget(id int) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

func (m *MPV) readLoop() {
	defer close(m.done)
	defer close(m.incoming)

	scanner := bufio.NewScanner(m.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			m.logger.Debug("ignoring mpv message", "error", err)
			continue
		}

		if msg.Event == "" {
			m.mu.Lock()
			reply, ok := m.pending[msg.RequestID]
			delete(m.pending, msg.RequestID)
			m.mu.Unlock()
			if ok {
				reply <- msg
			}
			continue
		}

		if ev, ok := m.translate(msg); ok {
			m.incoming <- ev
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		m.logger.Warn("mpv connection lost", "error", err)
	}
}

// translate maps an mpv event onto an [Event], tagging it with the current load.
func (m *MPV) translate(msg ipcMessage) (Event, bool) {
	m.mu.Lock()
	if msg.Event == "start-file" {
		m.loads++
	}
	load := m.loads
	m.mu.Unlock()

	switch msg.Event {
	case "property-change":
		var value *float64
		if err := json.Unmarshal(msg.Data, &value); err != nil || value == nil {
			return Event{}, false
		}
		switch msg.Name {
		case "duration":
			return Event{Kind: MetadataReady, Load: load, Value: *value}, true
		case "time-pos":
			return Event{Kind: TimeUpdate, Load: load, Value: *value}, true
		}
	case "end-file":
		switch msg.Reason {
		case "eof":
			return Event{Kind: Ended, Load: load}, true
		case "error":
			reason := msg.FileError
			if reason == "" {
				reason = "unknown error"
			}
			return Event{Kind: Failed, Load: load, Err: fmt.Errorf("%w: %s", shared.ErrMediaLoad, reason)}, true
		}
	}
	return Event{}, false
}

// pump buffers events between the socket reader and the consumer so a slow
// consumer never stalls command replies.
func (m *MPV) pump() {
	defer close(m.events)

	var queue []Event
	for {
		var out chan Event
		var next Event
		if len(queue) > 0 {
			out = m.events
			next = queue[0]
		}

		select {
		case ev, ok := <-m.incoming:
			if !ok {
				return
			}
			queue = append(queue, ev)
		case out <- next:
			queue = queue[1:]
		}
	}
}
