package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	mu        sync.Mutex
	written   []Event
	failEvery bool
	closed    bool
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEvery {
		return errors.New("broken pipe")
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	f.written = append(f.written, ev)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.written...)
}

// rawConn fails the test if two writes ever overlap, the way a real
// websocket connection would corrupt frames.
type rawConn struct {
	t      *testing.T
	inUse  bool
	inUseM sync.Mutex
}

func (c *rawConn) WriteMessage(_ int, _ []byte) error {
	c.inUseM.Lock()
	if c.inUse {
		c.inUseM.Unlock()
		c.t.Error("concurrent write to connection")
		return nil
	}
	c.inUse = true
	c.inUseM.Unlock()

	time.Sleep(time.Microsecond)

	c.inUseM.Lock()
	c.inUse = false
	c.inUseM.Unlock()
	return nil
}

func (c *rawConn) Close() error { return nil }

func TestBroadcastFaultIsolation(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	healthy1 := &fakeConn{}
	broken := &fakeConn{failEvery: true}
	healthy2 := &fakeConn{}

	r.Register(healthy1, ChannelAdmin, "")
	r.Register(broken, ChannelAdmin, "")
	r.Register(healthy2, ChannelDriver, "driver-7")

	delivered := r.Broadcast(Pong())
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
	if len(healthy1.events()) != 1 || len(healthy2.events()) != 1 {
		t.Error("healthy connections did not all receive the event")
	}
	if !broken.closed {
		t.Error("failed connection was not closed")
	}
	if got := r.Stats().Total; got != 2 {
		t.Errorf("post-broadcast total = %d, want 2", got)
	}
}

func TestBroadcastChannelFilter(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	admin := &fakeConn{}
	driver := &fakeConn{}
	r.Register(admin, ChannelAdmin, "")
	r.Register(driver, ChannelDriver, "driver-1")

	if delivered := r.Broadcast(Pong(), ChannelAdmin); delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
	if len(admin.events()) != 1 || len(driver.events()) != 0 {
		t.Errorf("admin got %d events, driver got %d", len(admin.events()), len(driver.events()))
	}

	if delivered := r.Broadcast(Pong()); delivered != 2 {
		t.Errorf("unfiltered delivered = %d, want 2", delivered)
	}
}

func TestConcurrentBroadcastAndSendTo(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	conn := &rawConn{t: t}
	r.Register(conn, ChannelAdmin, "")

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				r.Broadcast(Pong())
				_ = r.SendTo(conn, Pong())
			}
		}()
	}
	wg.Wait()
}

func TestTouchPingUpdatesSession(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	r.now = func() time.Time { return clock }

	conn := &fakeConn{}
	r.Register(conn, ChannelDriver, "driver-1")

	clock = base.Add(30 * time.Second)
	r.TouchPing(conn)

	c := r.clients[conn]
	if !c.connectedAt.Equal(base) {
		t.Errorf("connectedAt = %v, want %v", c.connectedAt, base)
	}
	if !c.lastPing.Equal(base.Add(30 * time.Second)) {
		t.Errorf("lastPing = %v, want %v", c.lastPing, base.Add(30*time.Second))
	}

	// Unknown connections are a no-op.
	r.TouchPing(&fakeConn{})
}

func TestUnregisterIsIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	conn := &fakeConn{}
	r.Register(conn, ChannelDriver, "driver-1")
	r.Unregister(conn)
	r.Unregister(conn)

	if got := r.Stats().Total; got != 0 {
		t.Errorf("total = %d, want 0", got)
	}
}

func TestStatsByChannel(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	r.Register(&fakeConn{}, ChannelAdmin, "")
	r.Register(&fakeConn{}, ChannelDriver, "a")
	r.Register(&fakeConn{}, ChannelDriver, "b")

	stats := r.Stats()
	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if stats.Channel[ChannelAdmin] != 1 || stats.Channel[ChannelDriver] != 2 {
		t.Errorf("by channel = %v", stats.Channel)
	}
}

func TestSendToUnregistersOnFailure(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	broken := &fakeConn{failEvery: true}
	r.Register(broken, ChannelAdmin, "")

	if err := r.SendTo(broken, Pong()); err == nil {
		t.Fatal("expected write error")
	}
	if got := r.Stats().Total; got != 0 {
		t.Errorf("total = %d, want 0", got)
	}
}
