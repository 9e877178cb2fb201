// internal/feed/server.go — WebSocket endpoint simulator workers stream snapshots into.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/CaptainGlac1er/rocket-learn/service/internal/auth"
	"github.com/CaptainGlac1er/rocket-learn/service/internal/episode"
	"github.com/CaptainGlac1er/rocket-learn/service/internal/wire"
)

const (
	// readLimit bounds a single client frame. A full 6-player snapshot is a few KiB.
	readLimit  = 1 << 20
	writeWait  = 10 * time.Second
	closeGrace = 5 * time.Second
)

// ErrEpisodeMismatch is reported when a frame names an episode other than the
// one running on its connection.
var ErrEpisodeMismatch = errors.New("frame targets a different episode")

// SessionFactory builds the episode session serving one authenticated worker.
type SessionFactory func(worker string) (*episode.Session, error)

// Server serves the observation feed.
type Server struct {
	signer     *auth.Signer
	newSession SessionFactory
	log        *logrus.Logger
}

// NewServer returns a feed server authenticating with signer.
func NewServer(signer *auth.Signer, newSession SessionFactory, log *logrus.Logger) *Server {
	return &Server{signer: signer, newSession: newSession, log: log}
}

// Routes returns the HTTP handler exposing /v1/feed and /healthz.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/feed", s.handleFeed)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	tok, err := auth.FromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	claims, err := s.signer.Verify(tok)
	if err != nil {
		s.log.WithError(err).WithField("remote", r.RemoteAddr).Warn("Rejected feed token")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	sess, err := s.newSession(claims.Worker)
	if err != nil {
		s.log.WithError(err).WithField("worker", claims.Worker).Error("Failed to create session")
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.WithError(err).WithField("worker", claims.Worker).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	log := s.log.WithFields(logrus.Fields{"worker": claims.Worker, "remote": r.RemoteAddr})
	log.Info("Feed connected")

	ctx := r.Context()
	err = s.serve(ctx, conn, sess, log)

	// A worker dropping mid-episode still closes out its ledger row.
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeGrace)
	defer cancel()
	if cerr := sess.Close(closeCtx); cerr != nil && !errors.Is(cerr, episode.ErrNotStarted) {
		log.WithError(cerr).Warn("Failed to close episode")
	}

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		log.Info("Feed disconnected")
		conn.Close(websocket.StatusNormalClosure, "")
	default:
		if ctx.Err() != nil {
			log.Info("Feed cancelled")
			return
		}
		log.WithError(err).Warn("Feed terminated")
		conn.Close(websocket.StatusInternalError, "feed error")
	}
}

// serve reads frames until the connection fails. Frames are processed in
// order; every client frame gets exactly one server frame back.
func (s *Server) serve(ctx context.Context, conn *websocket.Conn, sess *episode.Session, log *logrus.Entry) error {
	for {
		var f wire.ClientFrame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return err
		}
		resp := s.dispatch(ctx, sess, &f)
		if resp.Type == wire.FrameError {
			log.WithFields(logrus.Fields{"frame": f.Type, "error": resp.Error}).Warn("Rejected frame")
		}

		wctx, cancel := context.WithTimeout(ctx, writeWait)
		err := wsjson.Write(wctx, conn, resp)
		cancel()
		if err != nil {
			return err
		}
	}
}

func (s *Server) dispatch(ctx context.Context, sess *episode.Session, f *wire.ClientFrame) wire.ServerFrame {
	if f.Type != wire.FrameReset && f.EpisodeID != "" {
		if id := sess.ID(); id == uuid.Nil || f.EpisodeID != id.String() {
			return errorFrame(sess, fmt.Errorf("%w: got %s", ErrEpisodeMismatch, f.EpisodeID))
		}
	}
	switch f.Type {
	case wire.FrameReset, wire.FrameStep:
		state, err := f.State.ToEngine()
		if err != nil {
			return errorFrame(sess, err)
		}
		var obs []wire.ObservationPayload
		if f.Type == wire.FrameReset {
			obs, err = sess.Reset(ctx, &state)
		} else {
			obs, err = sess.Step(ctx, &state, f.Actions)
		}
		if err != nil {
			return errorFrame(sess, err)
		}
		return wire.ServerFrame{
			Type:         wire.FrameObservations,
			EpisodeID:    sess.ID().String(),
			Step:         sess.Steps(),
			Observations: obs,
		}
	case wire.FrameClose:
		steps := sess.Steps()
		if err := sess.Close(ctx); err != nil {
			return errorFrame(sess, err)
		}
		return wire.ServerFrame{Type: wire.FrameClose, EpisodeID: sess.ID().String(), Step: steps}
	default:
		return errorFrame(sess, fmt.Errorf("unknown frame type %q", f.Type))
	}
}

func errorFrame(sess *episode.Session, err error) wire.ServerFrame {
	f := wire.ServerFrame{Type: wire.FrameError, Step: sess.Steps(), Error: err.Error()}
	if id := sess.ID(); id != uuid.Nil {
		f.EpisodeID = id.String()
	}
	return f
}
