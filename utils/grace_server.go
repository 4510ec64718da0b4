package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	DEFAULT_READ_TIMEOUT   = 60 * time.Second
	DEFAULT_SHUTDOWN_WAIT  = 30 * time.Second
	GRACEFUL_ENVIRON_KEY   = "IS_GRACEFUL"
	GRACEFUL_ENVIRON_VALUE = GRACEFUL_ENVIRON_KEY + "=1"
	GRACEFUL_LISTENER_FD   = 3
)

// Server wraps http.Server with signal driven shutdown and zero-downtime
// restart (SIGUSR2 hands the listener to a fresh process).
type Server struct {
	*http.Server

	listener     net.Listener
	isGraceful   bool
	signalChan   chan os.Signal
	shutdownChan chan struct{}
	onShutdown   []func()
}

// NewServer creates a Server. Uploads followed by a transcode can take as long
// as the transcode timeout, so the write timeout is supplied by the caller.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      writeTimeout,
		},
		isGraceful:   os.Getenv(GRACEFUL_ENVIRON_KEY) != "",
		signalChan:   make(chan os.Signal, 1),
		shutdownChan: make(chan struct{}),
	}
}

// OnShutdown registers fn to run after the HTTP server has drained.
func (srv *Server) OnShutdown(fn func()) {
	srv.onShutdown = append(srv.onShutdown, fn)
}

// ListenAndServe starts serving on tcp and handles signals.
func (srv *Server) ListenAndServe() error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := srv.getNetListener(addr)
	if err != nil {
		return err
	}
	srv.listener = ln

	go srv.handleSignals()
	err = srv.Server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-srv.shutdownChan
		return nil
	}
	return err
}

func (srv *Server) getNetListener(addr string) (net.Listener, error) {
	if srv.isGraceful {
		file := os.NewFile(GRACEFUL_LISTENER_FD, "")
		ln, err := net.FileListener(file)
		if err != nil {
			return nil, fmt.Errorf("net.FileListener error: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.Listen error: %w", err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	signal.Notify(srv.signalChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)

	for sig := range srv.signalChan {
		switch sig {
		case syscall.SIGTERM, syscall.SIGINT:
			Sugar.Infof("received %s, shutting down HTTP server", sig)
			srv.shutdownHTTPServer()
			return
		case syscall.SIGUSR2:
			Sugar.Info("received SIGUSR2, restarting HTTP server")
			pid, err := srv.startNewProcess()
			if err != nil {
				Sugar.Errorf("start new process failed: %v, continue serving", err)
				continue
			}
			Sugar.Infof("new process started, pid=%d; draining old server", pid)
			srv.shutdownHTTPServer()
			return
		}
	}
}

func (srv *Server) shutdownHTTPServer() {
	signal.Stop(srv.signalChan)
	ctx, cancel := context.WithTimeout(context.Background(), DEFAULT_SHUTDOWN_WAIT)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		Sugar.Errorf("HTTP server shutdown error: %v", err)
	} else {
		Sugar.Info("HTTP server shutdown complete")
	}
	for _, fn := range srv.onShutdown {
		fn()
	}
	close(srv.shutdownChan)
}

func (srv *Server) startNewProcess() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener is not *net.TCPListener")
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("get listener file: %w", err)
	}

	envs := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != GRACEFUL_ENVIRON_VALUE {
			envs = append(envs, e)
		}
	}
	envs = append(envs, GRACEFUL_ENVIRON_VALUE)

	attr := &syscall.ProcAttr{
		Env:   envs,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	}
	pid, err := syscall.ForkExec(os.Args[0], os.Args, attr)
	if err != nil {
		return 0, fmt.Errorf("forkexec: %w", err)
	}
	return pid, nil
}

// GraceServer serves handler on addr until SIGTERM/SIGINT, then drains and runs
// the cleanup hooks.
func GraceServer(addr string, handler http.Handler, writeTimeout time.Duration, cleanup ...func()) error {
	if writeTimeout < DEFAULT_READ_TIMEOUT {
		writeTimeout = DEFAULT_READ_TIMEOUT
	}
	srv := NewServer(addr, handler, DEFAULT_READ_TIMEOUT, writeTimeout)
	for _, fn := range cleanup {
		srv.OnShutdown(fn)
	}
	return srv.ListenAndServe()
}
