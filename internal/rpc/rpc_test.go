// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct {
	N int `json:"n"`
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(AutoBoneEpoch, ping{N: 7})
	require.NoError(t, err)

	env, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, AutoBoneEpoch, env.Type)
	assert.NotEmpty(t, env.ID)
	assert.JSONEq(t, `{"n":7}`, string(env.Payload))
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"payload":{}}`))
	assert.Error(t, err)

	_, err = Encode("", ping{})
	assert.Error(t, err)
}

func TestRouter_DispatchAndUnsubscribe(t *testing.T) {
	r := NewRouter()

	var got []int
	unsub := r.Subscribe(AutoBoneEpoch, func(p json.RawMessage) {
		var v ping
		require.NoError(t, json.Unmarshal(p, &v))
		got = append(got, v.N)
	})
	other := 0
	r.Subscribe(RecordBVHStatus, func(json.RawMessage) { other++ })

	data, _ := Encode(AutoBoneEpoch, ping{N: 1})
	assert.Equal(t, 1, r.Dispatch(data))
	data, _ = Encode(AutoBoneEpoch, ping{N: 2})
	assert.Equal(t, 1, r.Dispatch(data))

	unsub()
	unsub()
	assert.Equal(t, 0, r.Dispatch(data))

	assert.Equal(t, 0, r.Dispatch([]byte(`{broken`)))
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 0, other)
}

func collect(ch Channel, msgType MessageType) (func() []int, func()) {
	var (
		mu  sync.Mutex
		got []int
	)
	unsub := ch.Subscribe(msgType, func(p json.RawMessage) {
		var v ping
		if err := json.Unmarshal(p, &v); err == nil {
			mu.Lock()
			got = append(got, v.N)
			mu.Unlock()
		}
	})
	return func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), got...)
	}, unsub
}

func TestPipe_OrderedDelivery(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	received, _ := collect(b, AutoBoneProcessStatus)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		require.NoError(t, a.Send(ctx, AutoBoneProcessStatus, ping{N: i}))
	}

	require.Eventually(t, func() bool { return len(received()) == 20 }, time.Second, 5*time.Millisecond)
	for i, n := range received() {
		assert.Equal(t, i, n)
	}
}

func TestPipe_SendAfterClose(t *testing.T) {
	a, b := Pipe()
	b.Close()

	err := a.Send(context.Background(), AutoBoneEpoch, ping{})
	assert.ErrorIs(t, err, ErrClosed)
	a.Close()
}

func TestWSChannel_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ch, err := UpgradeWS(w, r)
		if err != nil {
			return
		}
		// Echo requests back as status events with N doubled.
		ch.Subscribe(AutoBoneProcessRequest, func(p json.RawMessage) {
			var v ping
			json.Unmarshal(p, &v)
			ch.Send(context.Background(), AutoBoneProcessStatus, ping{N: v.N * 2})
		})
		ch.Start()
		<-ch.Done()
		ch.Close()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := DialWS(ctx, url)
	require.NoError(t, err)

	received, _ := collect(client, AutoBoneProcessStatus)
	for i := 1; i <= 3; i++ {
		require.NoError(t, client.Send(ctx, AutoBoneProcessRequest, ping{N: i}))
	}

	require.Eventually(t, func() bool { return len(received()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int{2, 4, 6}, received())

	require.NoError(t, client.Close())
	assert.NoError(t, client.Err())
	assert.ErrorIs(t, client.Send(ctx, AutoBoneProcessRequest, ping{}), ErrClosed)
}

func TestDialWS_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := DialWS(ctx, "ws://127.0.0.1:1/autobone")
	assert.Error(t, err)
}

func TestRouter_LogsEnvelopeID(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	r := NewRouter()
	assert.Equal(t, 0, r.Dispatch([]byte(`{"type":"AutoBoneEpoch","id":"abc-123","payload":{}}`)))
	assert.Contains(t, buf.String(), "no handler for AutoBoneEpoch (id abc-123)")

	buf.Reset()
	assert.Equal(t, 0, r.Dispatch([]byte(`{"id":"def-456","payload":{}}`)))
	assert.Contains(t, buf.String(), "(id def-456)")

	buf.Reset()
	assert.Equal(t, 0, r.Dispatch([]byte(`{broken`)))
	assert.Contains(t, buf.String(), "(id unknown)")
}

func TestDialMQTT_Unreachable(t *testing.T) {
	ch, err := DialMQTT(MQTTOptions{
		Broker:         "tcp://127.0.0.1:1",
		ClientID:       "autobone-test",
		PublishTopic:   "autobone/requests",
		SubscribeTopic: "autobone/events",
	})
	assert.Error(t, err)
	assert.Nil(t, ch)
}
