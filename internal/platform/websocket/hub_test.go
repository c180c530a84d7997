package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/clinicflow/clinicflow/internal/platform/notify"
)

func recvFrame(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case msg := <-c.Send:
		var f Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			t.Fatalf("failed to unmarshal frame: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return Frame{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected frame delivered: %s", msg)
	default:
	}
}

func TestHub_RegisterClient(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:     "client-1",
		Topics: []string{TopicStations},
		Send:   make(chan []byte, 256),
	}

	hub.Register(client)

	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.TopicCount(TopicStations) != 1 {
		t.Fatalf("expected 1 client on stations, got %d", hub.TopicCount(TopicStations))
	}
}

func TestHub_UnregisterClient(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:     "client-2",
		Topics: []string{TopicAlerts},
		Send:   make(chan []byte, 256),
	}

	hub.Register(client)
	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.TopicCount(TopicAlerts) != 0 {
		t.Fatalf("expected 0 clients on alerts, got %d", hub.TopicCount(TopicAlerts))
	}

	if _, open := <-client.Send; open {
		t.Fatal("expected Send channel to be closed after unregister")
	}

	// A second unregister must not panic or double-close.
	hub.Unregister(client)
}

func TestHub_NotifyStationEvent(t *testing.T) {
	hub := NewHub()

	stations := &Client{
		ID:     "sub-stations",
		Topics: []string{TopicStations},
		Send:   make(chan []byte, 256),
	}
	journeys := &Client{
		ID:     "sub-journeys",
		Topics: []string{TopicJourneys},
		Send:   make(chan []byte, 256),
	}
	hub.Register(stations)
	hub.Register(journeys)

	err := hub.Notify(context.Background(), notify.Event{
		Kind:      notify.KindQueueAdmitted,
		StationID: "cardiac",
		PatientID: "p-1",
		Severity:  "info",
		Message:   "patient admitted",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	frame := recvFrame(t, stations)
	if frame.Topic != TopicStations {
		t.Fatalf("expected topic stations, got %s", frame.Topic)
	}
	if frame.Event.Kind != notify.KindQueueAdmitted {
		t.Fatalf("expected kind %s, got %s", notify.KindQueueAdmitted, frame.Event.Kind)
	}
	if frame.Event.StationID != "cardiac" {
		t.Fatalf("expected station cardiac, got %s", frame.Event.StationID)
	}

	assertSilent(t, journeys)
}

func TestHub_NotifyStationScopedTopic(t *testing.T) {
	hub := NewHub()

	cardiacOnly := &Client{
		ID:     "sub-cardiac",
		Topics: []string{StationTopic("cardiac")},
		Send:   make(chan []byte, 256),
	}
	hub.Register(cardiacOnly)

	hub.Notify(context.Background(), notify.Event{
		Kind:      notify.KindQueueAdmitted,
		StationID: "vital-signs",
		Timestamp: time.Now(),
	})
	assertSilent(t, cardiacOnly)

	hub.Notify(context.Background(), notify.Event{
		Kind:      notify.KindQueueAdmitted,
		StationID: "cardiac",
		Timestamp: time.Now(),
	})
	frame := recvFrame(t, cardiacOnly)
	if frame.Topic != "station.cardiac" {
		t.Fatalf("expected topic station.cardiac, got %s", frame.Topic)
	}
}

func TestHub_NotifyAlertFansOutToAllTopics(t *testing.T) {
	hub := NewHub()

	// One client watching all three matching topics receives one frame per
	// topic.
	watcher := &Client{
		ID:     "sub-all",
		Topics: []string{TopicAlerts, TopicStations, StationTopic("audio")},
		Send:   make(chan []byte, 256),
	}
	hub.Register(watcher)

	hub.Notify(context.Background(), notify.Event{
		Kind:      notify.KindAlertRaised,
		StationID: "audio",
		Severity:  "warning",
		Message:   "queue length 3 at threshold 2",
		Timestamp: time.Now(),
	})

	got := map[string]bool{}
	for i := 0; i < 3; i++ {
		got[recvFrame(t, watcher).Topic] = true
	}
	for _, topic := range []string{TopicAlerts, TopicStations, "station.audio"} {
		if !got[topic] {
			t.Fatalf("no frame delivered on %s, got %v", topic, got)
		}
	}
	assertSilent(t, watcher)
}

func TestHub_NotifyJourneyTopic(t *testing.T) {
	hub := NewHub()

	journeys := &Client{
		ID:     "sub-journeys",
		Topics: []string{TopicJourneys},
		Send:   make(chan []byte, 256),
	}
	stations := &Client{
		ID:     "sub-stations",
		Topics: []string{TopicStations},
		Send:   make(chan []byte, 256),
	}
	hub.Register(journeys)
	hub.Register(stations)

	hub.Notify(context.Background(), notify.Event{
		Kind:      notify.KindJourneyPhaseChanged,
		PatientID: "p-9",
		Severity:  "info",
		Message:   "journey moved reception to questionnaire",
		Timestamp: time.Now(),
	})

	frame := recvFrame(t, journeys)
	if frame.Topic != TopicJourneys {
		t.Fatalf("expected topic journeys, got %s", frame.Topic)
	}
	assertSilent(t, stations)
}

func TestHub_SlowClientSkipped(t *testing.T) {
	hub := NewHub()

	slow := &Client{
		ID:     "slow",
		Topics: []string{TopicStations},
		Send:   make(chan []byte, 1),
	}
	fast := &Client{
		ID:     "fast",
		Topics: []string{TopicStations},
		Send:   make(chan []byte, 256),
	}
	hub.Register(slow)
	hub.Register(fast)

	slow.Send <- []byte("backlog") // fill the buffer

	done := make(chan struct{})
	go func() {
		hub.Notify(context.Background(), notify.Event{
			Kind:      notify.KindStationStatusChanged,
			StationID: "vision",
			Timestamp: time.Now(),
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notify blocked on a slow client")
	}

	if frame := recvFrame(t, fast); frame.Event.StationID != "vision" {
		t.Fatalf("fast client got %+v", frame)
	}
}

func TestHub_NotifyWithNoSubscribers(t *testing.T) {
	hub := NewHub()

	if err := hub.Notify(context.Background(), notify.Event{
		Kind:      notify.KindQueueRemoved,
		StationID: "imaging",
		Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("notify with no subscribers: %v", err)
	}
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &Client{
				ID:     "concurrent",
				Topics: []string{TopicStations},
				Send:   make(chan []byte, 4),
			}
			hub.Register(client)
			hub.Notify(context.Background(), notify.Event{
				Kind:      notify.KindQueueAdmitted,
				StationID: "cardiac",
				Timestamp: time.Now(),
			})
			hub.Unregister(client)
		}()
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after churn, got %d", hub.ClientCount())
	}
	if hub.TopicCount(TopicStations) != 0 {
		t.Fatalf("expected empty stations topic after churn, got %d", hub.TopicCount(TopicStations))
	}
}

func TestTopicsFor(t *testing.T) {
	cases := []struct {
		name  string
		event notify.Event
		want  []string
	}{
		{
			name:  "queue event",
			event: notify.Event{Kind: notify.KindQueueAdmitted, StationID: "cardiac"},
			want:  []string{"stations", "station.cardiac"},
		},
		{
			name:  "status event",
			event: notify.Event{Kind: notify.KindStationStatusChanged, StationID: "vision"},
			want:  []string{"stations", "station.vision"},
		},
		{
			name:  "alert event",
			event: notify.Event{Kind: notify.KindAlertRaised, StationID: "audio"},
			want:  []string{"alerts", "stations", "station.audio"},
		},
		{
			name:  "alert resolved",
			event: notify.Event{Kind: notify.KindAlertResolved, StationID: "audio"},
			want:  []string{"alerts", "stations", "station.audio"},
		},
		{
			name:  "journey phase",
			event: notify.Event{Kind: notify.KindJourneyPhaseChanged},
			want:  []string{"journeys"},
		},
		{
			name:  "journey cancelled",
			event: notify.Event{Kind: notify.KindJourneyCancelled},
			want:  []string{"journeys"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TopicsFor(tc.event); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("TopicsFor = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHub_SubscribeAddsTopics(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:     "dynamic-sub",
		Topics: []string{},
		Send:   make(chan []byte, 256),
	}
	hub.Register(client)

	hub.Subscribe(client, []string{TopicAlerts, StationTopic("cardiac")})

	if hub.TopicCount(TopicAlerts) != 1 {
		t.Fatalf("expected 1 on alerts, got %d", hub.TopicCount(TopicAlerts))
	}
	if hub.TopicCount("station.cardiac") != 1 {
		t.Fatalf("expected 1 on station.cardiac, got %d", hub.TopicCount("station.cardiac"))
	}
	if len(client.Topics) != 2 {
		t.Fatalf("expected 2 topics on client, got %d", len(client.Topics))
	}
}

func TestHub_UnsubscribeRemovesTopics(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:     "dynamic-unsub",
		Topics: []string{TopicStations, TopicAlerts, TopicJourneys},
		Send:   make(chan []byte, 256),
	}
	hub.Register(client)

	hub.Unsubscribe(client, []string{TopicStations, TopicJourneys})

	if hub.TopicCount(TopicStations) != 0 {
		t.Fatalf("expected 0 on stations, got %d", hub.TopicCount(TopicStations))
	}
	if hub.TopicCount(TopicAlerts) != 1 {
		t.Fatalf("expected 1 on alerts, got %d", hub.TopicCount(TopicAlerts))
	}
	if len(client.Topics) != 1 || client.Topics[0] != TopicAlerts {
		t.Fatalf("expected only alerts remaining, got %v", client.Topics)
	}
}

func TestHub_ProcessMessage(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:     "process",
		Topics: []string{},
		Send:   make(chan []byte, 256),
	}
	hub.Register(client)

	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{TopicJourneys}})
	if hub.TopicCount(TopicJourneys) != 1 {
		t.Fatalf("subscribe not applied, topic count %d", hub.TopicCount(TopicJourneys))
	}

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{TopicJourneys}})
	if hub.TopicCount(TopicJourneys) != 0 {
		t.Fatalf("unsubscribe not applied, topic count %d", hub.TopicCount(TopicJourneys))
	}

	// Unknown actions are ignored.
	hub.ProcessMessage(client, ClientMessage{Action: "shout", Topics: []string{TopicJourneys}})
	if hub.TopicCount(TopicJourneys) != 0 {
		t.Fatal("unknown action mutated subscriptions")
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	hub := NewHub()
	handler := NewHandler(hub)

	e := echo.New()
	g := e.Group("")
	handler.RegisterRoutes(g)

	found := false
	for _, r := range e.Routes() {
		if r.Path == "/ws" && r.Method == http.MethodGet {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected GET /ws route to be registered")
	}
}

func TestHandler_RejectsPlainHTTP(t *testing.T) {
	hub := NewHub()
	handler := NewHandler(hub)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.HandleConnect(c)

	// The upgrader rejects requests without the websocket handshake headers.
	if err == nil && rec.Code == http.StatusSwitchingProtocols {
		t.Fatal("expected upgrade to fail for non-websocket request")
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("expected no clients registered, got %d", hub.ClientCount())
	}
}

func TestHandler_FullUpgradeWithDialer(t *testing.T) {
	hub := NewHub()
	handler := NewHandler(hub)

	e := echo.New()
	g := e.Group("")
	handler.RegisterRoutes(g)

	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	dialer := gorillawebsocket.Dialer{}
	conn, resp, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	// Give the connect goroutines a moment to register the client.
	time.Sleep(50 * time.Millisecond)
	if hub.ClientCount() < 1 {
		t.Fatal("expected at least 1 client registered after connect")
	}

	subMsg := ClientMessage{Action: "subscribe", Topics: []string{TopicStations}}
	if err := conn.WriteJSON(subMsg); err != nil {
		t.Fatalf("failed to send subscribe: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if hub.TopicCount(TopicStations) != 1 {
		t.Fatalf("expected 1 subscriber on stations, got %d", hub.TopicCount(TopicStations))
	}

	hub.Notify(context.Background(), notify.Event{
		Kind:      notify.KindQueueAdmitted,
		StationID: "spirometry",
		PatientID: "p-42",
		Severity:  "info",
		Message:   "patient admitted at position 1",
		Timestamp: time.Now(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	if frame.Topic != TopicStations {
		t.Fatalf("expected topic stations, got %s", frame.Topic)
	}
	if frame.Event.Kind != notify.KindQueueAdmitted || frame.Event.StationID != "spirometry" {
		t.Fatalf("unexpected event %+v", frame.Event)
	}
}
