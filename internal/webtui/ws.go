package webtui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"roster-cli/internal/store"
)

const (
	ptyBufSize   = 32 * 1024
	writeTimeout = 10 * time.Second
)

// controlMsg is a JSON text frame from the page; anything else is keystrokes.
type controlMsg struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  ptyBufSize,
	WriteBufferSize: ptyBufSize,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts requests without an Origin header (non-browser clients) and
// browser requests from the page served by this listener.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	return strings.HasSuffix(origin, "://"+strings.TrimSpace(r.Host))
}

// session is one `roster manage` child bound to a websocket.
type session struct {
	collection string
	cmd        *exec.Cmd
	ptmx       *os.File
	log        *zap.Logger
}

// sessionCollection picks the collection for a connection: the query parameter,
// else the server default.
func (s *Server) sessionCollection(r *http.Request) (string, error) {
	name := strings.TrimSpace(r.URL.Query().Get("collection"))
	if name == "" {
		name = s.cfg.Collection
	}
	return store.NormalizeCollection(name)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	col, err := s.sessionCollection(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sess, err := s.startSession(col)
	if err != nil {
		s.log.Warn("terminal session failed", zap.String("collection", col), zap.Error(err))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("failed to start session: "+err.Error()))
		return
	}
	defer sess.close()
	sess.log.Info("terminal session started", zap.String("remote", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sess.bridge(ctx, conn)
	sess.log.Info("terminal session ended")
}

// startSession runs the manager under a pty. The collection reaches the child
// through ROSTER_COLLECTION, which the config layer reads as an override.
func (s *Server) startSession(col string) (*session, error) {
	cmd := exec.Command(s.cfg.Exe, s.cfg.Args...)
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
		"ROSTER_COLLECTION="+col,
	)
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: 120, Rows: 40})
	if err != nil {
		return nil, err
	}
	return &session{
		collection: col,
		cmd:        cmd,
		ptmx:       ptmx,
		log:        s.log.With(zap.String("collection", col), zap.Int("pid", cmd.Process.Pid)),
	}, nil
}

func (ss *session) close() {
	_ = ss.ptmx.Close()
	_ = ss.cmd.Process.Kill()
	_, _ = ss.cmd.Process.Wait()
}

// bridge copies in both directions until either side stops or ctx ends.
func (ss *session) bridge(ctx context.Context, conn *websocket.Conn) {
	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errCh <- ss.output(ctx, conn)
	}()
	go func() {
		defer wg.Done()
		errCh <- ss.input(ctx, conn)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			ss.log.Debug("terminal stream stopped", zap.Error(err))
		}
	}
	// The pty read fails once the child is gone, the socket read once it is closed.
	_ = ss.cmd.Process.Kill()
	_ = conn.Close()
	wg.Wait()
}

// output streams the child's terminal output to the socket.
func (ss *session) output(ctx context.Context, conn *websocket.Conn) error {
	buf := make([]byte, ptyBufSize)
	for ctx.Err() == nil {
		n, err := ss.ptmx.Read(buf)
		if n > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}

// input feeds keystrokes to the child and applies resize requests.
func (ss *session) input(ctx context.Context, conn *websocket.Conn) error {
	for ctx.Err() == nil {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if len(data) == 0 {
			continue
		}
		if mt == websocket.TextMessage && data[0] == '{' && ss.control(data) {
			continue
		}
		if _, err := ss.ptmx.Write(data); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// control applies a control frame. It reports false for text that only looks
// like one, such as a typed '{', which is then passed through as input.
func (ss *session) control(data []byte) bool {
	var m controlMsg
	if err := json.Unmarshal(data, &m); err != nil || m.Type == "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(m.Type), "resize") && m.Cols > 0 && m.Rows > 0 {
		_ = pty.Setsize(ss.ptmx, &pty.Winsize{Cols: uint16(m.Cols), Rows: uint16(m.Rows)})
	}
	return true
}
