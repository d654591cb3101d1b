package wstransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openspdm/spdm-go/transport"
)

func msgFor(inSession bool, sessionID uint32, data []byte) transport.Message {
	return transport.Message{InSession: inSession, SessionID: sessionID, Data: data}
}

func TestSendReceiveRoundTrip(t *testing.T) {
	upgrader := NewUpgrader(5 * time.Second)
	serverConnCh := make(chan *Transport, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Accept(w, r)
		require.NoError(t, err)
		serverConnCh <- conn
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(context.Background(), wsURL, 5*time.Second, 5*time.Second)
	require.NoError(t, err)
	defer client.Close()

	server := <-serverConnCh
	defer server.Close()

	ctx := context.Background()
	require.NoError(t, client.Send(ctx, msgFor(false, 0, []byte("GET_VERSION"))))

	got, err := server.Receive(ctx, 2*time.Second)
	require.NoError(t, err)
	assert.False(t, got.InSession)
	assert.Equal(t, []byte("GET_VERSION"), got.Data)

	require.NoError(t, server.Send(ctx, msgFor(true, 42, []byte("app-data"))))
	reply, err := client.Receive(ctx, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, reply.InSession)
	assert.EqualValues(t, 42, reply.SessionID)
	assert.Equal(t, []byte("app-data"), reply.Data)
}

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	msg := msgFor(true, 7, []byte("payload"))
	decoded, err := decodeFrame(encodeFrame(msg))
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestDecodeFrameTooShort(t *testing.T) {
	_, err := decodeFrame([]byte{0, 1})
	assert.Error(t, err)
}
