// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package eventing_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"github.com/mabel-dev/tarchia/eventing"
)

func TestTriggerDelivers(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	received := make(chan map[string]any, 1)
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
	}))
	defer sink.Close()

	d := eventing.NewDispatcher(zaptest.NewLogger(t), eventing.Config{Workers: 2, Attempts: 1})
	defer func() { require.NoError(t, d.Close()) }()

	subs := []eventing.Subscription{
		{User: "joocer", Event: eventing.EventNewCommit, URL: sink.URL},
		{User: "joocer", Event: eventing.EventTableDeleted, URL: sink.URL + "/never"},
	}
	require.NoError(t, d.Trigger(ctx, eventing.TableEvents, eventing.EventNewCommit, subs, map[string]any{
		"event": "NEW_COMMIT",
		"table": "mabel.planets",
	}))

	select {
	case payload := <-received:
		require.Equal(t, "mabel.planets", payload["table"])
	case <-time.After(5 * time.Second):
		t.Fatal("delivery did not arrive")
	}
	// only the matching subscription fired
	require.Empty(t, received)
}

func TestTriggerUnsupportedKind(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	d := eventing.NewDispatcher(zaptest.NewLogger(t), eventing.Config{Workers: 1, Attempts: 1})
	defer func() { require.NoError(t, d.Close()) }()

	err := d.Trigger(ctx, eventing.TableEvents, eventing.EventTableCreated, nil, map[string]any{})
	require.True(t, eventing.Error.Has(err))
}

func TestCloseWaitsForTriggeredDelivery(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	entered := make(chan struct{})
	release := make(chan struct{})
	delivered := make(chan struct{})
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		close(delivered)
	}))
	defer sink.Close()

	d := eventing.NewDispatcher(zaptest.NewLogger(t), eventing.Config{Workers: 1, Attempts: 1})

	subs := []eventing.Subscription{{User: "joocer", Event: eventing.EventNewCommit, URL: sink.URL}}
	require.NoError(t, d.Trigger(ctx, eventing.TableEvents, eventing.EventNewCommit, subs, map[string]any{"event": "NEW_COMMIT"}))

	// once the sink is handling the post, the delivery occupies the pool and
	// Close must not return before it finishes
	<-entered
	closed := make(chan struct{})
	go func() {
		require.NoError(t, d.Close())
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a delivery was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after the delivery finished")
	}
	<-delivered
}

func TestSubscriptionValidate(t *testing.T) {
	good := eventing.Subscription{User: "joocer", Event: eventing.EventNewCommit, URL: "https://example.com/hook"}
	require.NoError(t, good.Validate(eventing.TableEvents))

	wrongKind := eventing.Subscription{User: "joocer", Event: eventing.EventTableCreated, URL: "https://example.com/hook"}
	require.Error(t, wrongKind.Validate(eventing.TableEvents))

	relative := eventing.Subscription{User: "joocer", Event: eventing.EventNewCommit, URL: "/hook"}
	require.Error(t, relative.Validate(eventing.TableEvents))
}
