package media

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/mdx/internal/shared"
)

// fakeMPV speaks enough of the mpv JSON IPC protocol to drive an [MPV] element.
type fakeMPV struct {
	t        *testing.T
	listener net.Listener
	conn     net.Conn

	mu       sync.Mutex
	commands [][]any
	fail     map[string]string // command name -> error reply
	onLoad   func(url string) []map[string]any
}

func newFakeMPV(t *testing.T, fail map[string]string, onLoad func(url string) []map[string]any) (*fakeMPV, string) {
	t.Helper()

	dir, err := os.MkdirTemp("", "mpv")
	if err != nil {
		t.Fatalf("failed to create socket dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	socket := filepath.Join(dir, "ipc.sock")
	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	if fail == nil {
		fail = map[string]string{}
	}
	f := &fakeMPV{t: t, listener: ln, fail: fail, onLoad: onLoad}
	go f.serve()
	return f, socket
}

func (f *fakeMPV) serve() {
	conn, err := f.listener.Accept()
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var req ipcRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil || len(req.Command) == 0 {
			continue
		}

		f.mu.Lock()
		f.commands = append(f.commands, req.Command)
		name, _ := req.Command[0].(string)
		reply := "success"
		if msg, ok := f.fail[name]; ok {
			reply = msg
		}
		f.mu.Unlock()

		f.send(map[string]any{"request_id": req.RequestID, "error": reply, "data": nil})

		if name == "loadfile" && reply == "success" && f.onLoad != nil {
			for _, ev := range f.onLoad(req.Command[1].(string)) {
				f.send(ev)
			}
		}
	}
}

func (f *fakeMPV) send(msg map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, _ := json.Marshal(msg)
	f.conn.Write(append(data, '\n'))
}

func (f *fakeMPV) Commands() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]any(nil), f.commands...)
}

func (f *fakeMPV) lastCommand() []any {
	cmds := f.Commands()
	return cmds[len(cmds)-1]
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestMPV(t *testing.T) {
	t.Run("Observes Properties On Connect", func(t *testing.T) {
		fake, socket := newFakeMPV(t, nil, nil)
		m, err := DialMPV(socket, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer m.Close()

		observed := map[string]bool{}
		for _, cmd := range fake.Commands() {
			if cmd[0] == "observe_property" {
				observed[cmd[2].(string)] = true
			}
		}
		if !observed["duration"] || !observed["time-pos"] {
			t.Errorf("expected duration and time-pos observed, got %v", observed)
		}
	})

	t.Run("Commands", func(t *testing.T) {
		fake, socket := newFakeMPV(t, nil, nil)
		m, err := DialMPV(socket, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer m.Close()

		tests := []struct {
			name string
			run  func() error
			want []any
		}{
			{"Play", m.Play, []any{"set_property", "pause", false}},
			{"Pause", m.Pause, []any{"set_property", "pause", true}},
			{"Seek", func() error { return m.Seek(42.5) }, []any{"seek", 42.5, "absolute"}},
			{"SetVolume", func() error { return m.SetVolume(0.5) }, []any{"set_property", "volume", 50.0}},
			{"SetSpeed", func() error { return m.SetSpeed(1.5) }, []any{"set_property", "speed", 1.5}},
			{"Stop", m.Stop, []any{"stop"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.run(); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				got := fake.lastCommand()
				if len(got) != len(tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
				for i := range got {
					if got[i] != tt.want[i] {
						t.Errorf("expected %v, got %v", tt.want, got)
					}
				}
			})
		}
	})

	t.Run("Load Emits Tagged Events", func(t *testing.T) {
		fake, socket := newFakeMPV(t, nil, func(url string) []map[string]any {
			return []map[string]any{
				{"event": "property-change", "id": observeDuration, "name": "duration", "data": 12.0},
				{"event": "start-file", "playlist_entry_id": 1},
				{"event": "property-change", "id": observeDuration, "name": "duration", "data": nil},
				{"event": "property-change", "id": observeDuration, "name": "duration", "data": 180.5},
				{"event": "property-change", "id": observeTimePos, "name": "time-pos", "data": 1.25},
				{"event": "end-file", "reason": "eof"},
			}
		})

		m, err := DialMPV(socket, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer m.Close()

		if err := m.Load("http://example.com/a.mp3"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		cmds := fake.Commands()
		if load := cmds[len(cmds)-1]; load[0] != "loadfile" || load[1] != "http://example.com/a.mp3" || load[2] != "replace" {
			t.Errorf("unexpected load command %v", load)
		}
		if pause := cmds[len(cmds)-2]; pause[0] != "set_property" || pause[2] != true {
			t.Errorf("expected pause before load, got %v", pause)
		}

		stale := nextEvent(t, m.Events())
		if stale.Kind != MetadataReady || stale.Load != 0 {
			t.Errorf("expected event before start-file tagged with load 0, got %+v", stale)
		}

		meta := nextEvent(t, m.Events())
		if meta.Kind != MetadataReady || meta.Load != 1 || meta.Value != 180.5 {
			t.Errorf("unexpected metadata event %+v", meta)
		}

		tick := nextEvent(t, m.Events())
		if tick.Kind != TimeUpdate || tick.Value != 1.25 {
			t.Errorf("unexpected time event %+v", tick)
		}

		if end := nextEvent(t, m.Events()); end.Kind != Ended || end.Load != 1 {
			t.Errorf("unexpected end event %+v", end)
		}
	})

	t.Run("Load Failure", func(t *testing.T) {
		_, socket := newFakeMPV(t, nil, func(string) []map[string]any {
			return []map[string]any{
				{"event": "start-file"},
				{"event": "end-file", "reason": "error", "file_error": "loading failed"},
			}
		})

		m, err := DialMPV(socket, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer m.Close()

		m.Load("http://example.com/broken.mp3")
		ev := nextEvent(t, m.Events())
		if ev.Kind != Failed || !errors.Is(ev.Err, shared.ErrMediaLoad) {
			t.Errorf("expected Failed with ErrMediaLoad, got %+v", ev)
		}
	})

	t.Run("Rejected Command", func(t *testing.T) {
		_, socket := newFakeMPV(t, map[string]string{"loadfile": "invalid parameter"}, nil)

		m, err := DialMPV(socket, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer m.Close()

		err = m.Load("bogus://")
		if !errors.Is(err, shared.ErrMediaLoad) {
			t.Errorf("expected ErrMediaLoad, got %v", err)
		}

		m.mu.Lock()
		loads := m.loads
		m.mu.Unlock()
		if loads != 1 {
			t.Errorf("expected rejected load to be counted, got %d", loads)
		}
	})

	t.Run("Close", func(t *testing.T) {
		_, socket := newFakeMPV(t, nil, nil)
		m, err := DialMPV(socket, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if err := m.Close(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if err := m.Play(); !errors.Is(err, shared.ErrMediaClosed) {
			t.Errorf("expected ErrMediaClosed after close, got %v", err)
		}
		if err := m.Close(); err != nil {
			t.Errorf("expected second close to be a no-op, got %v", err)
		}

		select {
		case _, ok := <-m.Events():
			if ok {
				t.Error("expected events channel to be closed")
			}
		case <-time.After(time.Second):
			t.Error("timed out waiting for events channel to close")
		}
	})

	t.Run("Dial Failure", func(t *testing.T) {
		_, err := DialMPV(filepath.Join(t.TempDir(), "missing.sock"), nil)
		if !errors.Is(err, shared.ErrPlaybackFailed) {
			t.Errorf("expected ErrPlaybackFailed, got %v", err)
		}
	})

	t.Run("Start Without Binary", func(t *testing.T) {
		_, err := StartMPV(t.Context(), MPVOpts{Path: filepath.Join(t.TempDir(), "no-mpv-here")})
		if !errors.Is(err, shared.ErrPlaybackFailed) {
			t.Errorf("expected ErrPlaybackFailed, got %v", err)
		}
	})
}

func TestEventKind(t *testing.T) {
	if MetadataReady.String() != "metadata-ready" || Failed.String() != "failed" {
		t.Error("unexpected event kind names")
	}
	if EventKind(99).String() != "EventKind(99)" {
		t.Errorf("unexpected unknown kind name %q", EventKind(99).String())
	}
}
