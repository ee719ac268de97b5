package notifier

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jcallum/medley/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// observerHarness runs a websocket endpoint that registers every incoming
// connection with the notifier and hands the server side back to the test.
// Tests that need snapshot-at-connect behavior override connect before dialing.
type observerHarness struct {
	notifier *Notifier
	server   *httptest.Server
	serverWS chan *websocket.Conn
	connect  func(ws *websocket.Conn)
}

func newObserverHarness(t *testing.T) *observerHarness {
	t.Helper()

	h := &observerHarness{
		notifier: New(),
		serverWS: make(chan *websocket.Conn, 10),
	}
	h.connect = h.notifier.Connect

	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		h.connect(ws)
		h.serverWS <- ws
	}))
	t.Cleanup(h.server.Close)

	return h
}

func (h *observerHarness) dial(t *testing.T) (client, server *websocket.Conn) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(h.server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-h.serverWS:
	case <-time.After(time.Second):
		t.Fatal("server side connection never arrived")
	}

	return client, server
}

func readMessage(t *testing.T, client *websocket.Conn) models.WireMessage {
	t.Helper()

	client.SetReadDeadline(time.Now().Add(time.Second))

	msg := models.WireMessage{}
	if err := client.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}

	return msg
}

func TestSnapshotThenUpdatesInOrder(t *testing.T) {
	h := newObserverHarness(t)

	tasks := []models.Task{{ID: "a", Status: models.TaskStatusPending}}
	h.connect = func(ws *websocket.Conn) {
		if err := h.notifier.ConnectWithSnapshot(ws, func() []models.Task { return tasks }); err != nil {
			t.Errorf("connect with snapshot failed: %v", err)
		}
	}

	client, _ := h.dial(t)

	msg := readMessage(t, client)
	if msg.Type != models.WireTypeSnapshot || len(msg.Tasks) != 1 || msg.Tasks[0].ID != "a" {
		t.Errorf("expected snapshot with task a; got %+v", msg)
	}

	for i, status := range []models.TaskStatus{models.TaskStatusRunning, models.TaskStatusCompleted} {
		h.notifier.Broadcast(models.NewUpdateMessage(models.Task{ID: "a", Status: status}))

		msg := readMessage(t, client)
		if msg.Type != models.WireTypeUpdate || msg.Task.Status != status {
			t.Errorf("message %d: expected update with status %q; got %+v", i, status, msg)
		}
	}
}

func TestBroadcastDuringConnectWaitsForSnapshot(t *testing.T) {
	h := newObserverHarness(t)

	snapshotStarted := make(chan struct{})
	snapshotProceed := make(chan struct{})

	h.connect = func(ws *websocket.Conn) {
		err := h.notifier.ConnectWithSnapshot(ws, func() []models.Task {
			close(snapshotStarted)
			<-snapshotProceed
			return []models.Task{{ID: "seed", Status: models.TaskStatusPending}}
		})
		if err != nil {
			t.Errorf("connect with snapshot failed: %v", err)
		}
	}

	clientDone := make(chan struct{})
	var first, second models.WireMessage
	go func() {
		defer close(clientDone)

		url := "ws" + strings.TrimPrefix(h.server.URL, "http")
		client, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Errorf("dial failed: %v", err)
			return
		}
		defer client.Close()

		client.SetReadDeadline(time.Now().Add(3 * time.Second))
		if err := client.ReadJSON(&first); err != nil {
			t.Errorf("first read failed: %v", err)
			return
		}
		if err := client.ReadJSON(&second); err != nil {
			t.Errorf("second read failed: %v", err)
		}
	}()

	// The observer is already registered but its snapshot is still pending; a
	// broadcast issued now must not reach the peer ahead of the snapshot frame.
	<-snapshotStarted

	broadcastDone := make(chan struct{})
	go func() {
		h.notifier.Broadcast(models.NewUpdateMessage(models.Task{ID: "seed", Status: models.TaskStatusRunning}))
		close(broadcastDone)
	}()

	time.Sleep(50 * time.Millisecond)
	close(snapshotProceed)

	<-broadcastDone
	<-clientDone

	if first.Type != models.WireTypeSnapshot || len(first.Tasks) != 1 || first.Tasks[0].ID != "seed" {
		t.Fatalf("expected the snapshot frame first; got %+v", first)
	}
	if second.Type != models.WireTypeUpdate || second.Task == nil || second.Task.Status != models.TaskStatusRunning {
		t.Fatalf("expected the broadcast frame second; got %+v", second)
	}
}

func TestBroadcastReachesAllObservers(t *testing.T) {
	h := newObserverHarness(t)
	clientA, _ := h.dial(t)
	clientB, _ := h.dial(t)

	if h.notifier.Count() != 2 {
		t.Fatalf("expected 2 observers; got %d", h.notifier.Count())
	}

	h.notifier.Broadcast(models.NewDeleteMessage("gone"))

	for _, client := range []*websocket.Conn{clientA, clientB} {
		msg := readMessage(t, client)
		if msg.Type != models.WireTypeDelete || msg.TaskID != "gone" {
			t.Errorf("expected delete frame; got %+v", msg)
		}
	}
}

func TestDeadObserverIsPrunedOnce(t *testing.T) {
	h := newObserverHarness(t)
	clientA, serverA := h.dial(t)
	clientB, _ := h.dial(t)
	_ = clientA

	// Kill A's server side so the next write to it fails.
	serverA.Close()

	h.notifier.Broadcast(models.NewUpdateMessage(models.Task{ID: "x"}))

	if h.notifier.Count() != 1 {
		t.Errorf("expected dead observer pruned; count=%d", h.notifier.Count())
	}

	// B is unaffected and keeps receiving.
	msg := readMessage(t, clientB)
	if msg.Type != models.WireTypeUpdate || msg.Task.ID != "x" {
		t.Errorf("expected update frame on surviving observer; got %+v", msg)
	}

	h.notifier.Broadcast(models.NewUpdateMessage(models.Task{ID: "y"}))

	msg = readMessage(t, clientB)
	if msg.Task.ID != "y" {
		t.Errorf("expected second update; got %+v", msg)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	h := newObserverHarness(t)
	_, server := h.dial(t)

	h.notifier.Disconnect(server)
	h.notifier.Disconnect(server)

	if h.notifier.Count() != 0 {
		t.Errorf("expected 0 observers; got %d", h.notifier.Count())
	}
}
