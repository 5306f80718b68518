package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/familyhealth/healthrecord/internal/platform/events"
)

const (
	patientA = "5f1c3a0e-8d2b-4c6e-9a7f-1b2c3d4e5f60"
	patientB = "0a9b8c7d-6e5f-4a3b-2c1d-0e9f8a7b6c5d"
)

func exportEvent(pid string) events.Event {
	return events.Event{
		Type:       events.TypeExportCompleted,
		PatientID:  pid,
		OccurredAt: time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC),
		Data:       map[string]any{"resource_count": 4},
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient()
	hub.Register(c)
	hub.Subscribe(c, []string{patientA})

	if hub.ClientCount() != 1 || hub.Subscribers(patientA) != 1 {
		t.Fatalf("expected 1 client on patient, got %d/%d", hub.ClientCount(), hub.Subscribers(patientA))
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 || hub.Subscribers(patientA) != 0 {
		t.Fatalf("expected empty hub, got %d/%d", hub.ClientCount(), hub.Subscribers(patientA))
	}
	if _, ok := <-c.Send; ok {
		t.Error("expected Send to be closed")
	}
	hub.Unregister(c)
}

func TestHub_SubscribeRejectsInvalidIDs(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient()
	hub.Register(c)

	rejected := hub.Subscribe(c, []string{patientA, "not-a-uuid", ""})
	if len(rejected) != 2 {
		t.Errorf("expected 2 rejected ids, got %v", rejected)
	}
	if hub.Subscribers(patientA) != 1 {
		t.Errorf("expected valid id subscribed")
	}
}

func TestHub_SubscribeNormalizesCase(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient()
	hub.Register(c)
	hub.Subscribe(c, []string{strings.ToUpper(patientA)})

	if hub.Subscribers(patientA) != 1 {
		t.Fatalf("expected subscription under canonical id")
	}
	hub.Unsubscribe(c, []string{patientA})
	if hub.Subscribers(patientA) != 0 {
		t.Errorf("expected unsubscribed")
	}
}

func TestHub_PublishToPatientOnly(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a, b := NewClient(), NewClient()
	hub.Register(a)
	hub.Register(b)
	hub.Subscribe(a, []string{patientA})
	hub.Subscribe(b, []string{patientB})

	if err := hub.Publish(context.Background(), exportEvent(patientA)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-a.Send:
		var got events.Event
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != events.TypeExportCompleted || got.PatientID != patientA {
			t.Errorf("unexpected event: %+v", got)
		}
	default:
		t.Fatal("expected subscriber to receive event")
	}

	select {
	case msg := <-b.Send:
		t.Fatalf("other patient's client got %s", msg)
	default:
	}
}

func TestHub_PublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient()
	hub.Register(c)
	hub.Subscribe(c, []string{patientA})

	for i := 0; i < sendBuffer+5; i++ {
		if err := hub.Publish(context.Background(), exportEvent(patientA)); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if len(c.Send) != sendBuffer {
		t.Errorf("expected full buffer of %d, got %d", sendBuffer, len(c.Send))
	}
}

func TestHub_Process(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient()
	hub.Register(c)

	hub.Process(c, ClientMessage{Action: ActionSubscribe, Patients: []string{patientA, patientB}})
	if hub.Subscribers(patientA) != 1 || hub.Subscribers(patientB) != 1 {
		t.Fatal("expected both subscriptions")
	}
	hub.Process(c, ClientMessage{Action: ActionUnsubscribe, Patients: []string{patientA}})
	if hub.Subscribers(patientA) != 0 || hub.Subscribers(patientB) != 1 {
		t.Fatal("expected only patientB left")
	}
	hub.Process(c, ClientMessage{Action: "shout", Patients: []string{patientA}})
	if hub.Subscribers(patientA) != 0 {
		t.Error("unknown action must not subscribe")
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := NewClient()
			hub.Register(c)
			hub.Subscribe(c, []string{patientA})
			hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			_ = hub.Publish(context.Background(), exportEvent(patientA))
		}()
	}
	wg.Wait()

	if hub.ClientCount() != 0 || hub.Subscribers(patientA) != 0 {
		t.Errorf("expected empty hub, got %d/%d", hub.ClientCount(), hub.Subscribers(patientA))
	}
}

func TestHub_IsPublisher(t *testing.T) {
	var rec events.Recorder
	hub := NewHub(zerolog.Nop())
	var p events.Publisher = events.Fanout{&rec, hub}
	if err := p.Publish(context.Background(), exportEvent(patientA)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(rec.Events()) != 1 {
		t.Error("expected recorder to see event")
	}
}

func TestHandler_RequiresUpgrade(t *testing.T) {
	e := echo.New()
	h := NewHandler(NewHub(zerolog.Nop()), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exchange/feed", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Connect(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_CheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    bool
	}{
		{"no origin header", []string{"http://localhost:3000"}, "", true},
		{"listed", []string{"http://localhost:3000"}, "http://localhost:3000", true},
		{"unlisted", []string{"http://localhost:3000"}, "http://evil.example", false},
		{"wildcard", []string{"*"}, "http://anything.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(NewHub(zerolog.Nop()), tt.origins)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := h.upgrader.CheckOrigin(req); got != tt.want {
				t.Errorf("CheckOrigin = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandler_EndToEnd(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	NewHandler(hub, nil).RegisterRoutes(e.Group("/api/v1"))
	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/exchange/feed?patient=" + patientA
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	waitFor(t, func() bool { return hub.Subscribers(patientA) == 1 })

	if err := conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Patients: []string{patientB}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool { return hub.Subscribers(patientB) == 1 })

	ev := exportEvent(patientB)
	ev.Type = events.TypeImportCompleted
	if err := hub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got events.Event
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != events.TypeImportCompleted || got.PatientID != patientB {
		t.Errorf("unexpected event: %+v", got)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
