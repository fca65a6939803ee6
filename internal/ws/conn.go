package ws

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yasirabd/suarasemar/internal/agent"
	"github.com/yasirabd/suarasemar/internal/protocol"
)

// conn is one client connection. It is the Emitter of its session.
type conn struct {
	id     string
	ws     *websocket.Conn
	cancel context.CancelFunc
	logger *zap.Logger

	writeMu sync.Mutex
	once    sync.Once
}

// Emit writes one envelope. Safe for concurrent use.
func (c *conn) Emit(m protocol.Outbound) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(m)
}

func (c *conn) close() {
	c.once.Do(func() {
		c.cancel()
		_ = c.ws.Close()
	})
}

// serve runs the connection until the client goes away or the router closes.
// In-flight turns are cancelled and awaited; nothing is persisted on the way
// out.
func (r *Router) serve(ctx context.Context, c *conn) {
	sess := agent.NewSession(r.opts.Services, r.opts.Agent, c, c.logger)
	defer func() {
		c.close()
		sess.Close()
	}()

	if err := sess.Open(ctx); err != nil {
		c.logger.Error("session open failed", zap.Error(err))
		_ = c.Emit(protocol.NewError("Failed to initialize session: "+err.Error(), nil))
		return
	}

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go c.readLoop(ctx, frames, readErr)

	idle := time.NewTimer(r.opts.IdleTimeout)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("ws read error", zap.Error(err))
			}
			return
		case data := <-frames:
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(r.opts.IdleTimeout)
			if !r.dispatch(ctx, c, sess, data) {
				return
			}
		case <-idle.C:
			if err := c.Emit(protocol.NewPing()); err != nil {
				c.logger.Debug("keep-alive ping failed", zap.Error(err))
				return
			}
			idle.Reset(r.opts.IdleTimeout)
		}
	}
}

func (c *conn) readLoop(ctx context.Context, frames chan<- []byte, readErr chan<- error) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		select {
		case frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

// dispatch handles one frame. It returns false when the connection must be
// torn down.
func (r *Router) dispatch(ctx context.Context, c *conn, sess *agent.Session, data []byte) (keep bool) {
	msg, err := protocol.Decode(data)
	if errors.Is(err, protocol.ErrMalformed) {
		c.logger.Warn("malformed envelope, closing connection", zap.Error(err))
		return false
	}
	if err != nil {
		c.logger.Info("invalid envelope", zap.String("type", protocol.TypeOf(msg)), zap.Error(err))
		_ = c.Emit(protocol.NewError(fmt.Sprintf("Invalid %s message: %v", protocol.TypeOf(msg), err), nil))
		return true
	}

	typ := protocol.TypeOf(msg)
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("recovered panic in handler",
				zap.String("type", typ),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
			_ = c.Emit(protocol.NewError(fmt.Sprintf("Error processing %s: internal error", typ), nil))
			keep = true
		}
	}()

	switch m := msg.(type) {
	case protocol.Audio:
		sess.HandleAudio(ctx, m.Data)
	case protocol.Interrupt:
		sess.Interrupt()
	case protocol.VisionUpload:
		sess.UploadImage(ctx, m.Image, m.MIME)
	case protocol.ClearHistory:
		sess.ClearHistory()
	case protocol.Greeting:
		sess.Greet(ctx)
	case protocol.SilentFollowup:
		sess.Followup(ctx, m.Tier)
	case protocol.GetSystemPrompt:
		sess.SendSystemPrompt()
	case protocol.UpdateSystemPrompt:
		sess.UpdateSystemPrompt(ctx, m.Prompt)
	case protocol.GetUserProfile:
		sess.SendUserProfile()
	case protocol.UpdateUserProfile:
		sess.UpdateUserProfile(ctx, m.Name)
	case protocol.GetVisionSettings:
		sess.SendVisionSettings()
	case protocol.UpdateVisionSettings:
		sess.UpdateVisionSettings(ctx, m.Enabled)
	case protocol.SaveSession:
		sess.SaveSession(ctx, m.Title, m.SessionID)
	case protocol.LoadSession:
		sess.LoadSession(ctx, m.SessionID)
	case protocol.ListSessions:
		sess.ListSessions(ctx)
	case protocol.DeleteSession:
		sess.DeleteSession(ctx, m.SessionID)
	case protocol.Ping:
		_ = c.Emit(protocol.NewPong())
	case protocol.Pong:
	case protocol.Unknown:
		c.logger.Info("unknown message type", zap.String("type", m.Type))
		_ = c.Emit(protocol.NewError("Unknown message type: "+m.Type, nil))
	}
	return true
}
