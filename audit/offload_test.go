package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/batonhq/baton/action"
	"github.com/batonhq/baton/audit"
	"github.com/batonhq/baton/event"
)

type memBlob struct {
	mu    sync.Mutex
	saved map[string][]byte
	fail  bool
}

func newMemBlob() *memBlob {
	return &memBlob{saved: make(map[string][]byte)}
}

func (m *memBlob) Save(_ context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("blob store unavailable")
	}
	m.saved[name] = data
	return "https://blobs.example.com/" + name, nil
}

// bigResult builds a result whose serialized Data is exactly n bytes:
// {"blob":"<padding>"} costs 11 bytes of framing around the padding.
func bigResult(n int) *action.Result {
	return action.Success(map[string]any{
		"blob": strings.Repeat("x", n-11),
	})
}

func TestOffloadAboveThreshold(t *testing.T) {
	blobs := newMemBlob()
	off := audit.NewOffloader(blobs, audit.WithThreshold(1024))
	inv := &action.Invocation{Name: "report.export"}

	res := bigResult(1025)
	wantSize, _ := json.Marshal(res.Data)

	got := off.Offload(context.Background(), inv, res)
	if got == res {
		t.Fatal("result not replaced")
	}
	if got.Data["original_size_bytes"] != len(wantSize) {
		t.Errorf("original_size_bytes = %v, want exact size %d",
			got.Data["original_size_bytes"], len(wantSize))
	}
	if got.Data["success"] != true || got.Data["action"] != "report.export" {
		t.Errorf("envelope = %#v", got.Data)
	}
	name, _ := got.Data["file_name"].(string)
	if !strings.HasPrefix(name, "report.export_result_") || !strings.HasSuffix(name, ".json") {
		t.Errorf("file_name = %q", name)
	}
	url, _ := got.Data["file_url"].(string)
	if url == "" {
		t.Error("file_url missing from envelope")
	}

	blobs.mu.Lock()
	stored, ok := blobs.saved[name]
	blobs.mu.Unlock()
	if !ok || len(stored) != len(wantSize) {
		t.Errorf("blob store holds %d bytes, want %d", len(stored), len(wantSize))
	}
	if got.Status != action.StatusSuccess {
		t.Errorf("Status = %q, envelope must keep the original status", got.Status)
	}
}

func TestOffloadAtThresholdStaysInline(t *testing.T) {
	blobs := newMemBlob()
	off := audit.NewOffloader(blobs, audit.WithThreshold(1024))

	res := bigResult(1024)
	got := off.Offload(context.Background(), &action.Invocation{Name: "a"}, res)

	if got != res {
		t.Error("result at exactly the threshold must stay inline")
	}
	if len(blobs.saved) != 0 {
		t.Error("nothing should reach the blob store")
	}
}

func TestOffloadFailureReturnsOriginal(t *testing.T) {
	blobs := newMemBlob()
	blobs.fail = true
	off := audit.NewOffloader(blobs, audit.WithThreshold(64))

	res := bigResult(1024)
	got := off.Offload(context.Background(), &action.Invocation{Name: "a"}, res)

	if got != res {
		t.Error("blob failure must degrade to the original result")
	}
	if stats := off.Stats(); stats.Failed != 1 || stats.Offloaded != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestOffloadWithoutBlobStore(t *testing.T) {
	off := audit.NewOffloader(nil, audit.WithThreshold(1))
	res := bigResult(1024)
	if got := off.Offload(context.Background(), &action.Invocation{Name: "a"}, res); got != res {
		t.Error("nil blob store must pass the result through")
	}
}

func TestOffloadAnnouncesResource(t *testing.T) {
	broker := event.NewMemoryBroker()
	bus := event.NewBus(broker)
	bus.Start(context.Background())
	t.Cleanup(func() {
		bus.Stop()
		broker.Close()
	})

	got := make(chan *event.Event, 1)
	bus.Subscribe(event.ResourceCreated, func(_ context.Context, e *event.Event) error {
		got <- e
		return nil
	})

	off := audit.NewOffloader(newMemBlob(),
		audit.WithThreshold(64), audit.WithOffloadBus(bus))
	inv := &action.Invocation{
		Name:   "report.export",
		Caller: &action.Caller{UserID: "u-9"},
	}
	off.Offload(context.Background(), inv, bigResult(1024))

	select {
	case e := <-got:
		if e.Data["resource_type"] != "file" {
			t.Errorf("resource_type = %v", e.Data["resource_type"])
		}
		if e.Data["url"] == "" || e.Data["resource_id"] == "" {
			t.Errorf("resource reference incomplete: %#v", e.Data)
		}
		if e.UserID != "u-9" {
			t.Errorf("UserID = %q", e.UserID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("resource.created not published")
	}
}
