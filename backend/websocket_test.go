// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttbt-io/pitchdeck/backend/pdfexport"
)

func wsURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/api/ws"
}

func newHubServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ws", hub.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcastsExportEvents(t *testing.T) {
	hub, server := newHubServer(t)
	a := dial(t, server)
	b := dial(t, server)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.PublishExport(pdfexport.Event{ID: "e1", Stage: pdfexport.StageCapture, Time: time.Now()})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, MsgTypeExport, msg.Type)
		require.NotNil(t, msg.Event)
		assert.Equal(t, "e1", msg.Event.ID)
		assert.Equal(t, pdfexport.StageCapture, msg.Event.Stage)
	}
}

func TestHubPingPong(t *testing.T) {
	_, server := newHubServer(t)
	conn := dial(t, server)

	require.NoError(t, conn.WriteJSON(Message{Type: MsgTypePing}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgTypePong, msg.Type)

	require.NoError(t, conn.WriteJSON(Message{Type: "NOPE"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgTypeError, msg.Type)
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub, server := newHubServer(t)
	conn := dial(t, server)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubRejectsCrossOrigin(t *testing.T) {
	_, server := newHubServer(t)
	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server.URL), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub, server := newHubServer(t)
	conn := dial(t, server)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())
	hub.PublishExport(pdfexport.Event{ID: "late"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	assert.Error(t, conn.ReadJSON(&msg), "the hub closes the connection")
}
