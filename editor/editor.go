// Package editor manages the headless editor process and exposes its
// RPC surface as typed methods. The editor is the single peer on the
// other side of the bridge: it hosts the buffers, the language
// servers and the debug adapters.
package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/nvimbridge/nvim-ide-mcp/bridge"
	"github.com/nvimbridge/nvim-ide-mcp/ideerr"
	"github.com/nvimbridge/nvim-ide-mcp/log"
	"github.com/nvimbridge/nvim-ide-mcp/poll"
	"github.com/nvimbridge/nvim-ide-mcp/workspace"
)

// Options configures the editor process and its connection.
type Options struct {
	// Bin is the editor binary. Defaults to "nvim".
	Bin string
	// InitFile is passed as -u and must load the RPC runtime that
	// serves the methods in methods.go.
	InitFile string
	// ExtraArgs are appended to the editor command line.
	ExtraArgs []string
	// SocketDir holds the listen socket. Defaults to os.TempDir().
	SocketDir string
	// StartupTimeout bounds the wait for the listen socket.
	StartupTimeout time.Duration
	// ReadyTimeout bounds the wait for the RPC runtime.
	ReadyTimeout time.Duration
	// LSPPoll tunes waits for language server readiness.
	LSPPoll poll.Options

	// Workspace resolves every path crossing the boundary. Required.
	Workspace *workspace.Resolver
	// Bridge is the connection configuration template. Resolver and
	// Logger are filled in from this Options.
	Bridge *bridge.Config
	Logger log.Logger
}

func (o Options) normalized() Options {
	if o.Bin == "" {
		o.Bin = "nvim"
	}
	if o.SocketDir == "" {
		o.SocketDir = os.TempDir()
	}
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = 10 * time.Second
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	return o
}

// Editor is a running (or attachable) headless editor instance.
type Editor struct {
	opts Options
	log  log.Logger
	ws   *workspace.Resolver

	mu      sync.Mutex
	cmd     *exec.Cmd
	waitCh  chan error
	client  *bridge.Client
	socket  string
	buffers map[string]int
}

// New prepares an editor. Call Start to spawn the process.
func New(opts Options) *Editor {
	opts = opts.normalized()
	return &Editor{
		opts:    opts,
		log:     opts.Logger,
		ws:      opts.Workspace,
		buffers: make(map[string]int),
	}
}

// Start spawns the headless editor, waits for its socket, connects the
// bridge and waits for the RPC runtime to come up. On any failure the
// process is killed before returning.
func (e *Editor) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return nil
	}

	socket := filepath.Join(e.opts.SocketDir, fmt.Sprintf("nvim-ide-%d.sock", os.Getpid()))
	os.Remove(socket)

	args := []string{"--headless", "--listen", socket, "-n"}
	if e.opts.InitFile != "" {
		args = append(args, "-u", e.opts.InitFile)
	}
	args = append(args, "--cmd", "cd "+e.ws.Root())
	args = append(args, e.opts.ExtraArgs...)

	cmd := exec.Command(e.opts.Bin, args...)
	cmd.Dir = e.ws.Root()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start editor %s: %w", e.opts.Bin, err)
	}
	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()
	e.log.Infof("editor: started %s pid=%d socket=%s", e.opts.Bin, cmd.Process.Pid, socket)

	err := poll.Await(ctx, poll.Options{
		Initial:  50 * time.Millisecond,
		Max:      250 * time.Millisecond,
		Deadline: e.opts.StartupTimeout,
		What:     "editor socket",
	}, func(ctx context.Context) (bool, error) {
		_, statErr := os.Stat(socket)
		return statErr == nil, nil
	})
	if err != nil {
		cmd.Process.Kill()
		return err
	}

	client, err := bridge.Dial(ctx, "unix", socket, e.bridgeConfig())
	if err != nil {
		cmd.Process.Kill()
		return err
	}

	if err := e.awaitRuntime(ctx, client); err != nil {
		client.Close()
		cmd.Process.Kill()
		return err
	}

	e.cmd = cmd
	e.waitCh = waitCh
	e.client = client
	e.socket = socket
	return nil
}

// Attach connects to an already-running editor instead of spawning
// one. Stop on an attached editor only closes the connection.
func Attach(ctx context.Context, network, addr string, opts Options) (*Editor, error) {
	e := New(opts)
	client, err := bridge.Dial(ctx, network, addr, e.bridgeConfig())
	if err != nil {
		return nil, err
	}
	if err := e.awaitRuntime(ctx, client); err != nil {
		client.Close()
		return nil, err
	}
	e.client = client
	e.socket = addr
	return e, nil
}

// newWithClient wires an existing connection in. Tests use this to
// drive the editor against an in-memory peer.
func newWithClient(client *bridge.Client, opts Options) *Editor {
	e := New(opts)
	e.client = client
	return e
}

func (e *Editor) bridgeConfig() *bridge.Config {
	cfg := &bridge.Config{}
	if e.opts.Bridge != nil {
		cfg = &bridge.Config{
			ConnectTimeout: e.opts.Bridge.ConnectTimeout,
			RequestTimeout: e.opts.Bridge.RequestTimeout,
			WriteTimeout:   e.opts.Bridge.WriteTimeout,
			OutgoingBuffer: e.opts.Bridge.OutgoingBuffer,
		}
	}
	cfg.Resolver = e.ws
	cfg.Logger = e.log
	return cfg
}

// awaitRuntime polls the ready method until the RPC runtime answers.
func (e *Editor) awaitRuntime(ctx context.Context, client *bridge.Client) error {
	return poll.Await(ctx, poll.Options{
		Initial:  100 * time.Millisecond,
		Max:      500 * time.Millisecond,
		Deadline: e.opts.ReadyTimeout,
		What:     "editor runtime",
	}, func(ctx context.Context) (bool, error) {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		var out struct {
			Ready bool `json:"ready"`
		}
		err := client.CallInto(callCtx, &out, string(MethodReady))
		if err != nil {
			if ideerr.IsKind(err, ideerr.KindConnectionLost) {
				return false, err
			}
			return false, nil
		}
		return out.Ready, nil
	})
}

// Stop shuts the editor down: a best-effort quit request, then the
// connection, then the process.
func (e *Editor) Stop(ctx context.Context) error {
	e.mu.Lock()
	client := e.client
	cmd := e.cmd
	waitCh := e.waitCh
	socket := e.socket
	e.client = nil
	e.cmd = nil
	e.waitCh = nil
	e.buffers = make(map[string]int)
	e.mu.Unlock()

	if client != nil {
		quitCtx, cancel := context.WithTimeout(ctx, time.Second)
		client.Notify(quitCtx, string(MethodQuit))
		cancel()
		client.Close()
	}
	if cmd == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		e.log.Warnf("editor: kill pid=%d: %v", cmd.Process.Pid, err)
	}
	select {
	case <-waitCh:
	case <-time.After(2 * time.Second):
		e.log.Warnf("editor: pid=%d did not exit after kill", cmd.Process.Pid)
	}
	os.Remove(socket)
	e.log.Infof("editor: stopped pid=%d", cmd.Process.Pid)
	return nil
}

// Running reports whether the connection to the editor is alive.
func (e *Editor) Running() bool {
	e.mu.Lock()
	client := e.client
	e.mu.Unlock()
	return client != nil && client.State() == bridge.StateConnected
}

// Client exposes the underlying connection for event subscription.
func (e *Editor) Client() *bridge.Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client
}

func (e *Editor) call(ctx context.Context, out interface{}, m Method, args ...interface{}) error {
	e.mu.Lock()
	client := e.client
	e.mu.Unlock()
	if client == nil {
		return ideerr.ConnectionLost(errors.New("editor not running"))
	}
	return client.CallInto(ctx, out, string(m), args...)
}

// pathArg marks an argument for canonicalization on the way out.
func pathArg(path string) bridge.Path {
	return bridge.Path(path)
}
