package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/conversation"
	"github.com/edubridge/edubridge-backend/internal/ctxutil"
	"github.com/edubridge/edubridge-backend/internal/models"
	"github.com/edubridge/edubridge-backend/internal/realtime"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

type messagesSnapshot struct {
	MatchID  string           `json:"matchId"`
	Messages []models.Message `json:"messages"`
}

// handleFeedWS шлёт события users/posts/matches, пока жив сокет и сессия.
func (s *Server) handleFeedWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, _ := ctxutil.SessionID(ctx)
	sess, _ := sessionFrom(ctx)

	sub, err := s.rt.Start(ctx, sid, realtime.TopicUsers, realtime.TopicPosts, realtime.TopicMatches)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	defer s.rt.Release(sid, sub)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	gone := readPump(conn)
	s.pump(conn, sub, gone, func(ev realtime.Event) (any, bool) {
		if ev.Topic == realtime.TopicUsers && ev.Kind == "updated" {
			s.refreshOwnProfile(ctx, sid, sess.User.ID, ev.Data)
		}
		return ev, true
	})
}

// refreshOwnProfile обновляет кэш сессии, если изменился профиль её владельца.
func (s *Server) refreshOwnProfile(ctx context.Context, sid, ownerID string, data json.RawMessage) {
	var u models.User
	if err := json.Unmarshal(data, &u); err != nil || u.ID != ownerID {
		return
	}
	if err := s.sessions.Refresh(ctx, sid, u); err != nil {
		s.log.Warn("session refresh failed", zap.String("user_id", u.ID), zap.Error(err))
	}
}

// handleMessagesWS отправляет полный упорядоченный снимок чата при каждом изменении.
func (s *Server) handleMessagesWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, _ := ctxutil.SessionID(ctx)
	matchID := chi.URLParam(r, "matchID")

	// подписка раньше чтения истории: Timeline отбросит повторы
	sub, err := s.rt.Start(ctx, sid, realtime.MessagesTopic(matchID))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	defer s.rt.Release(sid, sub)

	history, err := s.conv.History(ctx, matchID, userID(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	tl := conversation.NewTimeline(history...)
	if err := writeWS(conn, messagesSnapshot{MatchID: matchID, Messages: tl.Snapshot()}); err != nil {
		return
	}

	gone := readPump(conn)
	s.pump(conn, sub, gone, func(ev realtime.Event) (any, bool) {
		var m models.Message
		if err := json.Unmarshal(ev.Data, &m); err != nil {
			s.log.Warn("bad message event", zap.String("match_id", matchID), zap.Error(err))
			return nil, false
		}
		if !tl.Add(m) {
			return nil, false
		}
		return messagesSnapshot{MatchID: matchID, Messages: tl.Snapshot()}, true
	})
}

// pump пишет в сокет до отключения клиента или закрытия подписки (logout, остановка сервера).
func (s *Server) pump(conn *websocket.Conn, sub *realtime.Subscription, gone <-chan struct{}, frame func(realtime.Event) (any, bool)) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case ev, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, closeFrame(sub), time.Now().Add(wsWriteWait))
				return
			}
			payload, send := frame(ev)
			if !send {
				continue
			}
			if err := writeWS(conn, payload); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeFrame: 1013 "resync" просит клиента переподключиться за новым снимком.
func closeFrame(sub *realtime.Subscription) []byte {
	if sub.Overflowed() {
		return websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resync")
	}
	return websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
}

func writeWS(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}

// readPump читает (и выбрасывает) входящие кадры; канал закрывается при отключении.
func readPump(conn *websocket.Conn) <-chan struct{} {
	gone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return gone
}
