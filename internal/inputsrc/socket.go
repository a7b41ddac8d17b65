package inputsrc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/kumralcem/croaker/internal/config"
	"github.com/kumralcem/croaker/internal/logging"
	"github.com/kumralcem/croaker/internal/session"
)

// ErrDaemonAlreadyRunning is returned by Bind when a live daemon already
// owns the socket.
var ErrDaemonAlreadyRunning = errors.New("inputsrc: a croaker daemon is already running")

// probeTimeout bounds how long Bind waits to find out whether a stale
// socket file actually has a daemon listening behind it.
const probeTimeout = 300 * time.Millisecond

// SocketPath returns the daemon's command socket path, grounded on
// _examples/original_source/src/input/socket.rs's SocketServer::socket_path,
// translated from Rust's dirs::cache_dir() to config.CacheDir().
func SocketPath() (string, error) {
	dir, err := config.CacheDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}
	return dir + "/croaker.sock", nil
}

// Bind performs the single-instance enforcement from spec.md §4.7:
// exclusive bind, and on failure a probe-connect to distinguish a live
// daemon from a stale socket file left by an unclean shutdown.
func Bind(path string) (net.Listener, error) {
	l, err := net.Listen("unix", path)
	if err == nil {
		return l, nil
	}

	if !isAddrInUse(err) {
		return nil, err
	}

	if probeAlive(path) {
		return nil, ErrDaemonAlreadyRunning
	}

	logging.Warnf("inputsrc: removing stale socket %s", path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket: %w", err)
	}
	return net.Listen("unix", path)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, os.ErrExist) || strings.Contains(err.Error(), "address already in use")
}

func probeAlive(path string) bool {
	conn, err := net.DialTimeout("unix", path, probeTimeout)
	if err != nil {
		return false
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(probeTimeout))
	fmt.Fprintln(conn, "status")
	reply, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && reply != ""
}

// SocketSource is the Unix-domain command socket from spec.md §4.5. One
// request per connection: a single command line in, a single status
// line out, then close.
type SocketSource struct {
	listener net.Listener
	sink     Sink
	ctrl     *session.Controller
}

// NewSocketSource wraps an already-bound listener. ctrl is read to answer
// "status" queries and to decide whether "toggle" means start or stop;
// every other command is translated to an Event and handed to sink.
func NewSocketSource(listener net.Listener, sink Sink, ctrl *session.Controller) *SocketSource {
	return &SocketSource{listener: listener, sink: sink, ctrl: ctrl}
}

// Run accepts connections until ctx is cancelled or the listener closes.
func (s *SocketSource) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Warnf("inputsrc: socket accept: %v", err)
			continue
		}
		go s.handle(conn)
	}
}

func (s *SocketSource) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}
	cmd := strings.TrimSpace(line)

	reply := s.dispatch(cmd)
	fmt.Fprintln(conn, reply)
}

func (s *SocketSource) dispatch(cmd string) string {
	switch cmd {
	case "toggle":
		state := s.ctrl.Snapshot()
		if state.Phase == session.Idle {
			s.sink.Submit(session.Event{Kind: session.EvStartRecording})
		} else if state.Phase == session.Recording {
			s.sink.Submit(session.Event{Kind: session.EvStopRecording})
		}
		return "ok"
	case "cancel":
		s.sink.Submit(session.Event{Kind: session.EvCancel})
		return "ok"
	case "toggle-output-mode":
		s.sink.Submit(session.Event{Kind: session.EvToggleOutputMode})
		return "ok"
	case "toggle-language":
		s.sink.Submit(session.Event{Kind: session.EvToggleLanguage})
		return "ok"
	case "status":
		st := s.ctrl.Snapshot()
		return fmt.Sprintf("phase=%s lang=%s mode=%s", st.Phase, st.Language, st.OutputMode)
	default:
		return "error: unknown command " + cmd
	}
}
