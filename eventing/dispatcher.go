// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package eventing fans out webhook notifications for catalog changes.
// Delivery is best effort and strictly off the request path: a commit
// returns to the client regardless of delivery outcomes.
package eventing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/context2"
	"storj.io/common/sync2"
)

var (
	mon = monkit.Package()

	// Error is the default error class for the eventing package.
	Error = errs.Class("eventing")
)

// EventType names a kind of catalog change.
type EventType string

// Event kinds.
const (
	EventNewCommit    EventType = "NEW_COMMIT"
	EventTableCreated EventType = "TABLE_CREATED"
	EventTableDeleted EventType = "TABLE_DELETED"
	EventViewCreated  EventType = "VIEW_CREATED"
	EventViewDeleted  EventType = "VIEW_DELETED"
)

// KindSet is the fixed set of event kinds an entity type supports.
type KindSet map[EventType]bool

var (
	// TableEvents are the kinds a table subscription can listen for.
	TableEvents = KindSet{
		EventNewCommit: true,
	}
	// OwnerEvents are the kinds an owner subscription can listen for.
	OwnerEvents = KindSet{
		EventTableCreated: true,
		EventTableDeleted: true,
		EventViewCreated:  true,
		EventViewDeleted:  true,
	}
)

// Subscription registers a URL to be POSTed to when an event fires. It is
// persisted on the catalog entry it watches.
type Subscription struct {
	User  string    `json:"user"`
	Event EventType `json:"event"`
	URL   string    `json:"url"`
}

// Validate checks the subscription against the kinds its entity supports.
func (s Subscription) Validate(supported KindSet) error {
	if !supported[s.Event] {
		return Error.New("unsupported event kind %q", s.Event)
	}
	parsed, err := url.Parse(s.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Error.New("subscription url %q is not an absolute url", s.URL)
	}
	return nil
}

// Config tunes webhook delivery.
type Config struct {
	Workers    int           `help:"size of the delivery worker pool" default:"4"`
	Timeout    time.Duration `help:"timeout for a single webhook post" default:"10s"`
	Attempts   int           `help:"delivery attempts per subscriber" default:"3"`
	BackoffMin time.Duration `help:"initial delay between delivery attempts" default:"5s"`
	BackoffMax time.Duration `help:"longest delay between delivery attempts" default:"60s"`
}

// Dispatcher posts event payloads to subscribers on a small shared worker
// pool. The pool is created lazily and recreated after Close, so a dispatcher
// is usable for the life of the process.
type Dispatcher struct {
	log    *zap.Logger
	config Config
	client *http.Client

	mu      sync.Mutex
	limiter *sync2.Limiter
}

// NewDispatcher creates a dispatcher that delivers with the given tuning.
func NewDispatcher(log *zap.Logger, config Config) *Dispatcher {
	return &Dispatcher{
		log:    log,
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

func (d *Dispatcher) pool() *sync2.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.limiter == nil {
		d.limiter = sync2.NewLimiter(d.config.Workers)
	}
	return d.limiter
}

// Trigger submits payload to every subscription listening for kind and
// returns without waiting on delivery. Triggering a kind outside supported
// is an error; subscriptions for other kinds are skipped.
func (d *Dispatcher) Trigger(ctx context.Context, supported KindSet, kind EventType, subs []Subscription, payload map[string]any) (err error) {
	defer mon.Task()(&ctx)(&err)

	if !supported[kind] {
		return Error.New("unsupported event kind %q", kind)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Error.Wrap(err)
	}

	// deliveries outlive the request that triggered them. The pool is
	// resolved before detaching so a concurrent Close drains these
	// deliveries instead of a limiter created after it returned.
	detached := context2.WithoutCancellation(ctx)
	pool := d.pool()
	for _, sub := range subs {
		if sub.Event != kind {
			continue
		}
		endpoint := sub.URL
		go pool.Go(detached, func() {
			d.deliver(detached, kind, endpoint, body)
		})
	}
	return nil
}

// deliver posts body to endpoint, retrying connection and timeout failures
// with exponential backoff. A response outside 2xx is not retried; failures
// are logged and dropped.
func (d *Dispatcher) deliver(ctx context.Context, kind EventType, endpoint string, body []byte) {
	backoff := d.config.BackoffMin
	for attempt := 1; ; attempt++ {
		status, err := d.post(ctx, endpoint, body)
		if err == nil {
			if status < 200 || status >= 300 {
				d.log.Warn("webhook rejected",
					zap.String("event", string(kind)),
					zap.String("url", endpoint),
					zap.Int("status", status))
			}
			return
		}

		var transport *url.Error
		if !errors.As(err, &transport) || attempt >= d.config.Attempts {
			d.log.Warn("webhook delivery failed",
				zap.String("event", string(kind)),
				zap.String("url", endpoint),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return
		}

		if !sync2.Sleep(ctx, backoff) {
			return
		}
		backoff *= 2
		if backoff > d.config.BackoffMax {
			backoff = d.config.BackoffMax
		}
	}
}

func (d *Dispatcher) post(ctx context.Context, endpoint string, body []byte) (status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Close waits for in-flight deliveries to finish. The worker pool is
// recreated on the next Trigger.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	limiter := d.limiter
	d.limiter = nil
	d.mu.Unlock()

	if limiter != nil {
		limiter.Wait()
	}
	return nil
}
