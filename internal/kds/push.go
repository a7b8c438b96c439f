package kds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tableflow/api/internal/apiclient"
	"github.com/tableflow/api/internal/events"
)

// PushURL turns an API base URL (http://host/api) into the branch's order
// event stream URL (ws://host/api/ws/branches/{id}/orders).
func PushURL(apiBase string, branchID int64) (string, error) {
	u, err := url.Parse(strings.TrimRight(apiBase, "/"))
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported api base url scheme %q", u.Scheme)
	}
	u.Path = fmt.Sprintf("%s/ws/branches/%d/orders", u.Path, branchID)
	return u.String(), nil
}

// Delays between reconnect attempts. The delay doubles after each failed
// attempt and starts over once a stream was established.
var (
	reconnectDelay    = time.Second
	maxReconnectDelay = 30 * time.Second
)

// Subscribe listens to the branch's order events and triggers a refresh of
// the poller for each one. It reconnects after failures until ctx is done.
// Polling keeps running alongside, so a lost stream only costs latency.
func Subscribe(ctx context.Context, apiBase string, p *Poller) error {
	endpoint, err := PushURL(apiBase, p.BranchID)
	if err != nil {
		return err
	}

	backoff := reconnectDelay
	for {
		connected, err := subscribeOnce(ctx, endpoint, p)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = reconnectDelay
		}
		log.Printf("WARN: order stream for branch %d: %v (retrying in %s)", p.BranchID, err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxReconnectDelay)
	}
}

// subscribeOnce reads one stream until it fails. connected reports whether
// the dial succeeded.
func subscribeOnce(ctx context.Context, endpoint string, p *Poller) (connected bool, _ error) {
	token, err := p.Gate.Token(ctx)
	if err != nil {
		return false, err
	}

	header := http.Header{}
	header.Add("Cookie", (&http.Cookie{Name: apiclient.KDSCookie, Value: token}).String())
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		// The hub batches queued events into one frame, newline separated.
		for _, line := range bytes.Split(msg, []byte{'\n'}) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var env struct {
				Type    string            `json:"type"`
				Payload events.OrderEvent `json:"payload"`
			}
			if err := json.Unmarshal(line, &env); err != nil {
				log.Printf("WARN: order stream for branch %d: bad event: %v", p.BranchID, err)
				continue
			}
			if env.Payload.BranchID != 0 && env.Payload.BranchID != p.BranchID {
				continue
			}
			p.Trigger()
		}
	}
}
