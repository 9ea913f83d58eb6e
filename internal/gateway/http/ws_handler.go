package http

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"social-connect/internal/session"
	"social-connect/internal/shared/errors"
	"social-connect/internal/shared/utils"
	"social-connect/internal/social"
	"social-connect/internal/social/live"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Listen targets
const (
	TargetProfile       = "profile"
	TargetFeed          = "feed"
	TargetComments      = "comments"
	TargetConversations = "conversations"
	TargetMessages      = "messages"
)

// Frame types
const (
	FrameSnapshot     = "snapshot"
	FrameNotification = "notification"
	FrameError        = "error"
	FrameSubscribed   = "subscribed"
	FrameUnsubscribed = "unsubscribed"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ListenRequest is sent by the client. ID names the post for comments and the
// conversation for messages.
type ListenRequest struct {
	Action string `json:"action"`
	Target string `json:"target"`
	ID     string `json:"id,omitempty"`
}

// Frame is sent by the server
type Frame struct {
	Type    string      `json:"type"`
	Target  string      `json:"target,omitempty"`
	ID      string      `json:"id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (h *Handler) requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *Handler) listenHandler() fiber.Handler {
	return websocket.New(h.handleListen)
}

type listenConn struct {
	h            *Handler
	conn         *websocket.Conn
	client       *social.Client
	subscriberID string

	ctx    context.Context
	cancel context.CancelFunc
	out    chan Frame

	mu   sync.Mutex
	subs map[string]func()
}

func (h *Handler) handleListen(conn *websocket.Conn) {
	client, _ := conn.Locals(clientLocal).(*social.Client)
	sess, _ := conn.Locals(sessionLocal).(*session.Session)
	if client == nil || sess == nil {
		_ = conn.WriteJSON(Frame{Type: FrameError, Error: errors.CodeNotSignedIn, Message: "not signed in"})
		return
	}
	identityID, _ := sess.IdentityID()

	ctx, cancel := context.WithCancel(context.Background())
	ctx = utils.WithIdentityID(ctx, identityID)
	lc := &listenConn{
		h:            h,
		conn:         conn,
		client:       client,
		subscriberID: uuid.NewString(),
		ctx:          ctx,
		cancel:       cancel,
		out:          make(chan Frame, h.cfg.SendBuffer),
		subs:         make(map[string]func()),
	}
	log := h.log.WithFields(map[string]interface{}{"subscriber_id": lc.subscriberID, "identity_id": identityID})
	log.Info("listen connection opened")

	notes, unsubscribe := h.inbox.Subscribe(identityID)
	defer func() {
		unsubscribe()
		lc.closeAll()
		cancel()
		log.Info("listen connection closed")
	}()

	go lc.writeLoop(sess.Done())
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-notes:
				if !ok {
					return
				}
				lc.send(Frame{Type: FrameNotification, Data: n})
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var req ListenRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("listen read failed: %v", err)
			}
			return
		}
		switch req.Action {
		case "subscribe":
			lc.subscribe(req)
		case "unsubscribe":
			lc.unsubscribe(req)
		default:
			lc.send(Frame{Type: FrameError, Error: "invalid_action", Message: "unknown action: " + req.Action})
		}
	}
}

// writeLoop owns all writes to the connection. It closes the connection when
// the session ends or a write fails.
func (lc *listenConn) writeLoop(sessionDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		lc.cancel()
		_ = lc.conn.Close()
	}()
	for {
		select {
		case <-lc.ctx.Done():
			return
		case <-sessionDone:
			_ = lc.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"), time.Now().Add(writeWait))
			return
		case frame := <-lc.out:
			_ = lc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := lc.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := lc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (lc *listenConn) send(f Frame) bool {
	select {
	case lc.out <- f:
		return true
	case <-lc.ctx.Done():
		return false
	}
}

func (lc *listenConn) sendError(req ListenRequest, err error) {
	code, message := "internal_server_error", err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		code, message = appErr.Code, appErr.Message
		if code == "" {
			code = strings.ToLower(string(appErr.Type))
		}
	}
	lc.send(Frame{Type: FrameError, Target: req.Target, ID: req.ID, Error: code, Message: message})
}

func subscriptionKey(req ListenRequest) string {
	return req.Target + "/" + req.ID
}

func (lc *listenConn) subscribe(req ListenRequest) {
	key := subscriptionKey(req)
	lc.mu.Lock()
	_, exists := lc.subs[key]
	lc.mu.Unlock()
	if exists {
		lc.send(Frame{Type: FrameSubscribed, Target: req.Target, ID: req.ID})
		return
	}

	var (
		cancel func()
		err    error
	)
	switch req.Target {
	case TargetProfile:
		cancel, err = pump(lc, req, func(ctx context.Context) (*live.Stream[interface{}], error) {
			return adapt(lc.client.Profile.Watch(ctx))
		})
	case TargetFeed:
		cancel, err = pump(lc, req, func(ctx context.Context) (*live.Stream[interface{}], error) {
			return adapt(lc.client.Feed.Watch(ctx))
		})
	case TargetConversations:
		cancel, err = pump(lc, req, func(ctx context.Context) (*live.Stream[interface{}], error) {
			return adapt(lc.client.Conversations.Watch(ctx))
		})
	case TargetComments:
		cancel, err = pump(lc, req, func(ctx context.Context) (*live.Stream[interface{}], error) {
			return adapt(lc.client.Comments.Watch(ctx, req.ID))
		})
	case TargetMessages:
		cancel, err = pump(lc, req, func(ctx context.Context) (*live.Stream[interface{}], error) {
			return adapt(lc.client.Messages.Watch(ctx, req.ID))
		})
	default:
		err = errors.NewValidationError("unknown listen target " + req.Target)
	}
	if err != nil {
		lc.sendError(req, err)
		return
	}

	lc.mu.Lock()
	lc.subs[key] = cancel
	lc.mu.Unlock()
	lc.send(Frame{Type: FrameSubscribed, Target: req.Target, ID: req.ID})
}

func (lc *listenConn) unsubscribe(req ListenRequest) {
	key := subscriptionKey(req)
	lc.mu.Lock()
	cancel, ok := lc.subs[key]
	delete(lc.subs, key)
	lc.mu.Unlock()
	if ok {
		cancel()
	}
	lc.send(Frame{Type: FrameUnsubscribed, Target: req.Target, ID: req.ID})
}

func (lc *listenConn) closeAll() {
	lc.mu.Lock()
	subs := lc.subs
	lc.subs = make(map[string]func())
	lc.mu.Unlock()
	for _, cancel := range subs {
		cancel()
	}
}

// adapt erases the element type of a stream so every target shares one pump.
// The returned stream is cancelled together with src.
func adapt[T any](src *live.Stream[T], err error) (*live.Stream[interface{}], error) {
	if err != nil {
		return nil, err
	}
	dst := live.NewStream[interface{}](src.Context())
	dst.OnCancel(src.Cancel)
	go func() {
		defer dst.Close()
		for {
			select {
			case <-src.Done():
				return
			case v, ok := <-src.Updates():
				if !ok {
					return
				}
				dst.Publish(v)
			}
		}
	}()
	return dst, nil
}

// pump forwards every snapshot of the opened stream as a frame until the
// stream or the connection ends
func pump(lc *listenConn, req ListenRequest, open func(ctx context.Context) (*live.Stream[interface{}], error)) (func(), error) {
	stream, err := open(lc.ctx)
	if err != nil {
		return nil, err
	}
	go func() {
		defer stream.Cancel()
		for {
			select {
			case <-stream.Done():
				return
			case v, ok := <-stream.Updates():
				if !ok {
					return
				}
				if !lc.send(Frame{Type: FrameSnapshot, Target: req.Target, ID: req.ID, Data: v}) {
					return
				}
			}
		}
	}()
	return stream.Cancel, nil
}
