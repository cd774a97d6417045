// Package realtime subscribes to Supabase Realtime postgres_changes for a
// workshop session and turns them into workshop events.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"futureslab/internal/workshop"
)

const (
	defaultHeartbeat = 30 * time.Second
	protocolVersion  = "1.0.0"
)

// Client opens one websocket per subscription.
type Client struct {
	endpoint  string
	apiKey    string
	heartbeat time.Duration
	dialer    *websocket.Dialer
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHeartbeat overrides the 30s Phoenix heartbeat interval.
func WithHeartbeat(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.heartbeat = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds a client for the Supabase project at projectURL.
func New(projectURL, apiKey string, opts ...Option) (*Client, error) {
	endpoint, err := websocketURL(projectURL, apiKey)
	if err != nil {
		return nil, err
	}
	c := &Client{
		endpoint:  endpoint,
		apiKey:    apiKey,
		heartbeat: defaultHeartbeat,
		dialer:    websocket.DefaultDialer,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func websocketURL(projectURL, apiKey string) (string, error) {
	u, err := url.Parse(projectURL)
	if err != nil {
		return "", fmt.Errorf("realtime: parse project url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("realtime: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	q := url.Values{}
	q.Set("apikey", apiKey)
	q.Set("vsn", protocolVersion)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Topic is the channel topic used for a session.
func Topic(sessionID string) string {
	return "realtime:session-" + sessionID
}

type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter"`
}

type joinPayload struct {
	Config struct {
		PostgresChanges []changeFilter `json:"postgres_changes"`
	} `json:"config"`
	AccessToken string `json:"access_token,omitempty"`
}

func joinMessage(sessionID, token, ref string) message {
	var p joinPayload
	p.Config.PostgresChanges = []changeFilter{
		{Event: "UPDATE", Schema: "public", Table: "sessions", Filter: "id=eq." + sessionID},
		{Event: "*", Schema: "public", Table: "session_outputs", Filter: "session_id=eq." + sessionID},
	}
	p.AccessToken = token
	raw, _ := json.Marshal(p)
	return message{Topic: Topic(sessionID), Event: "phx_join", Payload: raw, Ref: &ref}
}

// Subscribe opens the socket, joins the session channel and streams events
// until ctx is done or the socket fails. The returned channel is closed when
// the subscription ends.
func (c *Client) Subscribe(ctx context.Context, sessionID string) (<-chan workshop.Event, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("realtime: dial: %w", err)
	}

	sub := &subscription{conn: conn, sessionID: sessionID, logger: c.logger.With(zap.String("session_id", sessionID))}
	if err := sub.send(joinMessage(sessionID, c.apiKey, sub.nextRef())); err != nil {
		conn.Close()
		return nil, fmt.Errorf("realtime: join: %w", err)
	}

	out := make(chan workshop.Event)
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		sub.read(ctx, out)
	}()
	go func() {
		defer wg.Done()
		sub.keepAlive(ctx, c.heartbeat)
	}()
	go func() {
		<-ctx.Done()
		conn.Close()
		wg.Wait()
		close(out)
	}()
	return out, nil
}

type subscription struct {
	conn      *websocket.Conn
	sessionID string
	logger    *zap.Logger
	writeMu   sync.Mutex
	ref       atomic.Int64
}

func (s *subscription) nextRef() string {
	return strconv.FormatInt(s.ref.Add(1), 10)
}

func (s *subscription) send(m message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(m)
}

func (s *subscription) keepAlive(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ref := s.nextRef()
			hb := message{Topic: "phoenix", Event: "heartbeat", Payload: json.RawMessage(`{}`), Ref: &ref}
			if err := s.send(hb); err != nil {
				s.logger.Warn("realtime heartbeat failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *subscription) read(ctx context.Context, out chan<- workshop.Event) {
	for {
		var m message
		if err := s.conn.ReadJSON(&m); err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("realtime read failed", zap.Error(err))
			}
			return
		}
		switch m.Event {
		case "postgres_changes":
			ev, ok, err := decodeChange(s.sessionID, m.Payload)
			if err != nil {
				s.logger.Warn("realtime payload skipped", zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		case "phx_reply":
			s.logger.Debug("realtime reply", zap.ByteString("payload", m.Payload))
		case "phx_error", "phx_close":
			s.logger.Warn("realtime channel closed", zap.String("event", m.Event))
			return
		}
	}
}

type changeEnvelope struct {
	Data struct {
		Table  string          `json:"table"`
		Type   string          `json:"type"`
		Record json.RawMessage `json:"record"`
	} `json:"data"`
}

type sessionRecord struct {
	ID          string          `json:"id"`
	CurrentStep workshop.Step   `json:"current_step"`
	Status      workshop.Status `json:"status"`
}

type outputRecord struct {
	SessionID string `json:"session_id"`
	StepName  string `json:"step_name"`
	Content   string `json:"content"`
}

// decodeChange converts a postgres_changes payload into an event. Deletes
// and rows for other sessions report false.
func decodeChange(sessionID string, payload []byte) (workshop.Event, bool, error) {
	var env changeEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, false, fmt.Errorf("decode change: %w", err)
	}
	if env.Data.Type == "DELETE" || len(env.Data.Record) == 0 || string(env.Data.Record) == "null" {
		return nil, false, nil
	}

	switch env.Data.Table {
	case "sessions":
		var rec sessionRecord
		if err := json.Unmarshal(env.Data.Record, &rec); err != nil {
			return nil, false, fmt.Errorf("decode session record: %w", err)
		}
		if rec.ID != sessionID {
			return nil, false, nil
		}
		return workshop.StepChanged{SessionID: rec.ID, Step: rec.CurrentStep, Status: rec.Status}, true, nil
	case "session_outputs":
		var rec outputRecord
		if err := json.Unmarshal(env.Data.Record, &rec); err != nil {
			return nil, false, fmt.Errorf("decode output record: %w", err)
		}
		if rec.SessionID != sessionID || rec.StepName == "" {
			return nil, false, nil
		}
		return workshop.OutputChanged{SessionID: rec.SessionID, StepName: rec.StepName, Content: rec.Content}, true, nil
	}
	return nil, false, nil
}
