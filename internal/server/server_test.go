package server

import (
	"context"
	"encoding/hex"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/FastTravelAS/chippy/internal/report"
	"github.com/FastTravelAS/chippy/internal/session"
	"github.com/FastTravelAS/chippy/internal/sink"
	"github.com/FastTravelAS/chippy/internal/status"
	"go.uber.org/zap"
)

const reportFrame = "02001713" + "020201200e" + "0102030405060708" + "ffff00000000"

// transceiver answers every request the way a healthy device does.
type transceiver struct {
	t    *testing.T
	conn net.Conn
	mode byte
	mu   sync.Mutex
	seen []byte
}

func dialTransceiver(t *testing.T, addr net.Addr) *transceiver {
	t.Helper()
	c, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	tr := &transceiver{t: t, conn: c}
	go tr.run()
	return tr
}

func (tr *transceiver) run() {
	header := make([]byte, 2)
	for {
		if _, err := io.ReadFull(tr.conn, header); err != nil {
			return
		}
		body := make([]byte, header[1])
		if _, err := io.ReadFull(tr.conn, body); err != nil {
			return
		}
		tr.mu.Lock()
		tr.seen = append(tr.seen, header[0])
		tr.mu.Unlock()

		var reply string
		switch header[0] {
		case 0x01:
			tr.mode = body[0]
			reply = "01000100"
		case 0x02:
			reply = "01000201" + hex.EncodeToString([]byte{tr.mode})
		case 0x0e:
			reply = "01000e0300137f"
		case 0x03:
			reply = "0100030400000000"
		case 0x0a, 0x2c, 0x3c, 0x0c:
			reply = "0100" + hex.EncodeToString(header[:1]) + "00"
		default:
			continue
		}
		tr.send(reply)
	}
}

func (tr *transceiver) send(frames ...string) {
	for _, f := range frames {
		b, err := hex.DecodeString(f)
		if err != nil {
			panic(err)
		}
		if _, err := tr.conn.Write(b); err != nil {
			return
		}
	}
}

func (tr *transceiver) requests() []byte {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]byte(nil), tr.seen...)
}

type fixture struct {
	srv      *Server
	store    *status.Memory
	registry *session.Registry
	events   *sink.Memory
	reports  *report.Recorder
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
}

func startServer(t *testing.T, concurrency int) *fixture {
	t.Helper()
	f := &fixture{
		store:   status.NewMemory(),
		events:  sink.NewMemory(),
		reports: &report.Recorder{},
	}
	f.registry = session.NewRegistry(f.store, zap.NewNop())
	f.srv = New(&Config{Host: "127.0.0.1", Port: 0, Concurrency: concurrency}, Deps{
		Logger:   zap.NewNop(),
		Reporter: f.reports,
		Registry: f.registry,
		Sink:     f.events,
	})
	if err := f.srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	go func() {
		f.err = f.srv.Serve(ctx)
		close(f.done)
	}()
	t.Cleanup(f.stop)
	return f
}

func (f *fixture) stop() {
	f.cancel()
	select {
	case <-f.done:
	case <-time.After(5 * time.Second):
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestServerForwardsReads(t *testing.T) {
	f := startServer(t, 2)
	tr := dialTransceiver(t, f.srv.Addr())
	defer tr.conn.Close()

	waitFor(t, "handshake", func() bool {
		_, ok := f.registry.Get(4991)
		return ok
	})
	tr.send(reportFrame)

	waitFor(t, "event", func() bool { return len(f.events.Events()) == 1 })
	ev := f.events.Events()[0]
	if ev.Chip != "0102030405060708" || ev.ClientID != 4991 {
		t.Errorf("event = %+v", ev)
	}

	want := []byte{0x01, 0x02, 0x0e, 0x03, 0x0a, 0x2c, 0x2c, 0x3c, 0x01, 0x02}
	got := tr.requests()
	if string(got) != string(want) {
		t.Errorf("requests = %x, want %x", got, want)
	}
	if ok, _ := f.store.IsClientInitialized(context.Background(), 4991); !ok {
		t.Error("device should be recorded as initialized")
	}
}

func TestServerSurvivesMalformedFrames(t *testing.T) {
	f := startServer(t, 1)
	tr := dialTransceiver(t, f.srv.Addr())
	defer tr.conn.Close()

	waitFor(t, "handshake", func() bool {
		_, ok := f.registry.Get(4991)
		return ok
	})

	tr.send("01006302aabb", "02111701ff", reportFrame)
	waitFor(t, "event after resync", func() bool { return len(f.events.Events()) == 1 })

	if n := len(f.reports.Reports()); n != 2 {
		t.Errorf("reports = %d, want 2 (malformed, rejected)", n)
	}
	if f.srv.GetActiveConnections() != 1 {
		t.Errorf("active connections = %d, want 1", f.srv.GetActiveConnections())
	}
}

func TestServerClearsSessionOnDisconnect(t *testing.T) {
	f := startServer(t, 1)
	tr := dialTransceiver(t, f.srv.Addr())

	waitFor(t, "handshake", func() bool {
		_, ok := f.registry.Get(4991)
		return ok
	})
	tr.conn.Close()

	waitFor(t, "disconnect", func() bool {
		_, ok := f.registry.Get(4991)
		return !ok && f.srv.GetActiveConnections() == 0
	})

	// The worker returns to accepting.
	tr2 := dialTransceiver(t, f.srv.Addr())
	defer tr2.conn.Close()
	waitFor(t, "second handshake", func() bool {
		_, ok := f.registry.Get(4991)
		return ok
	})
}

func TestServerKeepsSessionOfReconnectedDevice(t *testing.T) {
	f := startServer(t, 2)
	stale := dialTransceiver(t, f.srv.Addr())
	waitFor(t, "first handshake", func() bool {
		_, ok := f.registry.Get(4991)
		return ok
	})
	first, _ := f.registry.Get(4991)

	// The device comes back on a new socket before the old one is torn down.
	fresh := dialTransceiver(t, f.srv.Addr())
	defer fresh.conn.Close()
	waitFor(t, "second handshake", func() bool {
		rec, ok := f.registry.Get(4991)
		return ok && rec.ConnID != first.ConnID
	})

	stale.conn.Close()
	waitFor(t, "stale teardown", func() bool { return f.srv.GetActiveConnections() == 1 })

	rec, ok := f.registry.Get(4991)
	if !ok {
		t.Fatal("session of the reconnected device was removed by the stale connection")
	}
	if rec.ConnID == first.ConnID {
		t.Errorf("session still owned by stale connection %s", rec.ConnID)
	}

	fresh.send(reportFrame)
	waitFor(t, "event from reconnected device", func() bool { return len(f.events.Events()) == 1 })
}

func TestServerContinuesAfterDeviceFault(t *testing.T) {
	f := startServer(t, 1)
	tr := dialTransceiver(t, f.srv.Addr())
	defer tr.conn.Close()

	waitFor(t, "handshake", func() bool {
		_, ok := f.registry.Get(4991)
		return ok
	})

	// Unsolicited status with the internal voltage fault, then a read.
	tr.send("0100030400000020", reportFrame)
	waitFor(t, "event after fault", func() bool { return len(f.events.Events()) == 1 })

	if f.srv.GetActiveConnections() != 1 {
		t.Errorf("active connections = %d, want 1", f.srv.GetActiveConnections())
	}
	if n := len(f.reports.Reports()); n != 1 {
		t.Errorf("reports = %d, want 1", n)
	}
	if ev := f.events.Events()[0]; ev.ClientID != 4991 {
		t.Errorf("event client = %d, want 4991", ev.ClientID)
	}
}

func TestServerConcurrentDevices(t *testing.T) {
	f := startServer(t, 4)
	var devices []*transceiver
	for i := 0; i < 4; i++ {
		tr := dialTransceiver(t, f.srv.Addr())
		defer tr.conn.Close()
		devices = append(devices, tr)
	}
	waitFor(t, "all handshakes", func() bool { return f.srv.GetActiveConnections() == 4 })
	for _, tr := range devices {
		waitFor(t, "handshake", func() bool { return len(tr.requests()) >= 10 })
		tr.send(reportFrame)
	}
	waitFor(t, "events", func() bool { return len(f.events.Events()) == 4 })
}

func TestServerShutdown(t *testing.T) {
	f := startServer(t, 1)
	tr := dialTransceiver(t, f.srv.Addr())
	defer tr.conn.Close()

	waitFor(t, "handshake", func() bool {
		_, ok := f.registry.Get(4991)
		return ok
	})

	f.cancel()
	select {
	case <-f.done:
		if f.err != nil {
			t.Fatalf("Serve() error = %v", f.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	if s, _ := f.store.ServerStatus(context.Background()); s != status.Offline {
		t.Errorf("server status = %q, want offline", s)
	}
	if len(f.registry.Snapshot()) != 0 {
		t.Error("sessions should be cleared")
	}
	if len(f.reports.Reports()) != 0 {
		t.Errorf("shutdown should not report errors, got %v", f.reports.Reports())
	}

	_ = tr.conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := tr.conn.Read(make([]byte, 1)); err == nil {
		t.Error("device connection should be closed by shutdown")
	}
}

func TestListenPortInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	port := l.Addr().(*net.TCPAddr).Port
	srv := New(&Config{Host: "127.0.0.1", Port: port}, Deps{Registry: session.NewRegistry(status.NewMemory(), nil)})
	if err := srv.Listen(); err == nil {
		t.Error("Listen() on a bound port should fail")
	}
}

func TestServeWithoutListen(t *testing.T) {
	srv := New(&Config{}, Deps{})
	if err := srv.Serve(context.Background()); err == nil {
		t.Error("Serve() before Listen() should fail")
	}
}
