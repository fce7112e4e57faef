package console

import (
	"testing"
	"time"

	"github.com/Paranoid-AF/streamctl/catalog"
)

func TestPendingResolve(t *testing.T) {
	p := newPending(time.Minute)
	defer p.close()

	tmpl, err := catalog.Lookup(int(catalog.StopStream))
	if err != nil {
		t.Fatal(err)
	}
	sent := time.Now()
	p.track(tmpl, sent)
	if p.len() != 1 {
		t.Fatalf("len = %d, want 1", p.len())
	}

	req, ok := p.resolve("17")
	if !ok {
		t.Fatal("response for id 17 not matched")
	}
	if req.Method != "stop_stream" || req.ID != 17 || req.Command != catalog.StopStream || !req.SentAt.Equal(sent) {
		t.Errorf("resolved %+v", req)
	}
	if _, ok := p.resolve("17"); ok {
		t.Error("second response for the same id matched")
	}
	if p.len() != 0 {
		t.Errorf("len = %d after resolve, want 0", p.len())
	}
}

func TestPendingSameIDReplaces(t *testing.T) {
	p := newPending(time.Minute)
	defer p.close()

	tmpl, _ := catalog.Lookup(int(catalog.Activate))
	p.track(tmpl, time.Now())
	later := time.Now().Add(time.Second)
	p.track(tmpl, later)

	if p.len() != 1 {
		t.Fatalf("len = %d, want 1", p.len())
	}
	req, ok := p.resolve("11")
	if !ok || !req.SentAt.Equal(later) {
		t.Errorf("resolve = %+v, %v; want the later send", req, ok)
	}
}

func TestPendingExpires(t *testing.T) {
	p := newPending(20 * time.Millisecond)
	defer p.close()

	tmpl, _ := catalog.Lookup(int(catalog.PrepareService))
	p.track(tmpl, time.Now())
	time.Sleep(60 * time.Millisecond)

	if p.len() != 0 {
		t.Errorf("len = %d after expiry, want 0", p.len())
	}
	if _, ok := p.resolve("13"); ok {
		t.Error("expired request still matched")
	}
}

func TestPendingUnknownKey(t *testing.T) {
	p := newPending(0)
	defer p.close()
	if _, ok := p.resolve("99"); ok {
		t.Error("unknown id matched")
	}
}
