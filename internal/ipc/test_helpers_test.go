package ipc

import (
	"encoding/json"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
)

const sampleState = `{
  "monitors": {
    "elements": [
      {
        "name": "DELL U2720Q",
        "work_area_offset": {"left": 10, "top": 0, "right": 10, "bottom": 0},
        "workspaces": {
          "elements": [
            {"name": "code", "containers": {"elements": [{"id": "a"}, {"id": "b"}], "focused": 0}, "monocle_container": null},
            {"name": null, "containers": {"elements": [], "focused": 0}, "monocle_container": {"id": "c"}}
          ],
          "focused": 1
        }
      },
      {
        "name": "LG",
        "work_area_offset": null,
        "workspaces": {"elements": [{"containers": {"elements": [{"id": "d"}], "focused": 0}}], "focused": 0}
      }
    ],
    "focused": 0
  },
  "is_paused": false
}`

type fakeKomorebi struct {
	t        *testing.T
	dir      string
	listener net.Listener
	state    []byte

	mu       sync.Mutex
	messages []Message
	onMsg    func(Message)
}

func withDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(dirEnv, dir)
	return dir
}

func startFakeKomorebi(t *testing.T, dir string, state string) *fakeKomorebi {
	t.Helper()
	listener, err := net.Listen("unix", filepath.Join(dir, SocketFileName))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeKomorebi{t: t, dir: dir, listener: listener, state: []byte(state)}
	t.Cleanup(func() { listener.Close() })
	go f.serve()
	return f
}

func (f *fakeKomorebi) serve() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		f.handle(conn)
	}
}

func (f *fakeKomorebi) handle(conn net.Conn) {
	defer conn.Close()
	data, err := io.ReadAll(conn)
	if err != nil {
		return
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		f.t.Errorf("fake komorebi received invalid JSON %q: %v", data, err)
		return
	}
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	hook := f.onMsg
	f.mu.Unlock()
	if msg.Type == "State" {
		conn.Write(f.state)
	}
	if hook != nil {
		hook(msg)
	}
}

func (f *fakeKomorebi) received() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.messages...)
}
