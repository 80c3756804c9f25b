package realtime

import (
	"errors"
	"fmt"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"net/http"
	"regexp"
	"time"
)

var channelPattern = regexp.MustCompile(`^(user|merchant)/[1-9][0-9]*/orders$`)

var (
	ErrBadChannel = errors.New("unsupported channel")
	ErrForbidden  = errors.New("channel not allowed")
)

// ValidChannel reports whether ch is a customer or merchant order channel.
func ValidChannel(ch string) bool { return channelPattern.MatchString(ch) }

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Bridge upgrades an HTTP request and forwards one Redis channel to the socket.
type Bridge struct {
	Client   *redis.Client
	Prefix   string
	Upgrader websocket.Upgrader
	// Allow decides whether the caller may read channel; nil allows everyone.
	Allow func(r *http.Request, channel string) bool
	Log   *zap.Logger
}

func (b *Bridge) Serve(w http.ResponseWriter, r *http.Request, channel string) error {
	if !ValidChannel(channel) {
		return fmt.Errorf("%w: %q", ErrBadChannel, channel)
	}
	if b.Allow != nil && !b.Allow(r, channel) {
		return ErrForbidden
	}
	conn, err := b.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		return nil
	}
	defer conn.Close()

	ctx := r.Context()
	sub := b.Client.Subscribe(ctx, b.Prefix+channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		b.Log.Warn("subscribe failed", zap.String("channel", channel), zap.Error(err))
		return nil
	}
	b.Log.Debug("websocket subscribed", zap.String("channel", channel))

	closed := make(chan struct{})
	go b.readPump(conn, closed)

	msgs := sub.Channel()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return nil
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := write(conn, websocket.TextMessage, []byte(m.Payload)); err != nil {
				b.Log.Debug("websocket write failed", zap.String("channel", channel), zap.Error(err))
				return nil
			}
		case <-ping.C:
			if err := write(conn, websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

// readPump discards client frames and tracks liveness through pongs.
func (b *Bridge) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func write(conn *websocket.Conn, kind int, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(kind, data)
}
