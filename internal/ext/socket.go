package ext

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kolkov/tawk/internal/block"
	"github.com/kolkov/tawk/internal/types"
)

const socketReadSize = 4096

var socketKeywords = []string{
	"ServerSocket", "CServerSocket", "Socket", "CSocket",
	"SocketAcceptBlock", "SocketInputBlock", "SocketCloseBlock",
	"SocketAccept", "SocketRead", "SocketWrite", "SocketFlush", "SocketClose",
}

// Socket provides TCP listeners and connections addressed by handles.
//
// Every listener and connection runs a goroutine that feeds a single-slot
// queue. The C variants are line oriented: reads return one line without
// its terminator and writes append a newline. The plain variants move raw
// chunks of bytes.
type Socket struct {
	env *Env

	mu        sync.Mutex
	listeners map[string]*listener
	conns     map[string]*conn
	nextConn  int
	nextLn    int
	lastErr   string

	acceptSig *block.Signal
	inputSig  *block.Signal
	closeSig  *block.Signal
}

// NewSocket creates the socket extension.
func NewSocket() *Socket {
	return &Socket{
		listeners: make(map[string]*listener),
		conns:     make(map[string]*conn),
		acceptSig: block.NewSignal(),
		inputSig:  block.NewSignal(),
		closeSig:  block.NewSignal(),
	}
}

func (s *Socket) Name() string                  { return "Socket Support" }
func (s *Socket) Keywords() []string            { return socketKeywords }
func (s *Socket) ArrayParams(string, int) []int { return nil }

func (s *Socket) Init(env *Env) error {
	s.env = env
	return nil
}

// LastError returns the message of the most recent failed operation.
func (s *Socket) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Socket) fail(err error) types.Value {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.env.Logger.Debug("socket operation failed", "error", err)
	return types.Str("")
}

func (s *Socket) Invoke(ctx context.Context, keyword string, args []types.Value) (types.Value, error) {
	switch keyword {
	case "ServerSocket", "CServerSocket":
		var host, port string
		switch len(args) {
		case 1:
			port = toStr(s.env, args[0])
		case 2:
			host, port = toStr(s.env, args[0]), toStr(s.env, args[1])
		default:
			return types.Uninit(), argError(keyword, "expecting 1 or 2 args, got %d", len(args))
		}
		return s.listen(net.JoinHostPort(host, port), keyword == "CServerSocket"), nil
	case "Socket", "CSocket":
		if err := checkArgs(keyword, args, 2); err != nil {
			return types.Uninit(), err
		}
		addr := net.JoinHostPort(toStr(s.env, args[0]), toStr(s.env, args[1]))
		return s.dial(ctx, addr, keyword == "CSocket"), nil
	case "SocketAcceptBlock":
		return s.bulk(keyword, "SocketAccept", args, s.acceptSig, s.acceptReady)
	case "SocketInputBlock":
		return s.bulk(keyword, "SocketInput", args, s.inputSig, s.inputReady)
	case "SocketCloseBlock":
		return s.bulk(keyword, "SocketClose", args, s.closeSig, s.closeReady)
	case "SocketAccept":
		if err := checkArgs(keyword, args, 1); err != nil {
			return types.Uninit(), err
		}
		return s.accept(ctx, keyword, toStr(s.env, args[0]))
	case "SocketRead":
		if err := checkArgs(keyword, args, 1); err != nil {
			return types.Uninit(), err
		}
		return s.read(ctx, keyword, toStr(s.env, args[0]))
	case "SocketWrite":
		if err := checkArgs(keyword, args, 2); err != nil {
			return types.Uninit(), err
		}
		c, err := s.conn(keyword, toStr(s.env, args[0]))
		if err != nil {
			return types.Uninit(), err
		}
		if err := c.write(toStr(s.env, args[1])); err != nil {
			s.fail(err)
			return types.Int(0), nil
		}
		return types.Int(1), nil
	case "SocketFlush":
		if err := checkArgs(keyword, args, 1); err != nil {
			return types.Uninit(), err
		}
		if _, err := s.conn(keyword, toStr(s.env, args[0])); err != nil {
			return types.Uninit(), err
		}
		return types.Int(1), nil
	case "SocketClose":
		if err := checkArgs(keyword, args, 1); err != nil {
			return types.Uninit(), err
		}
		return s.closeHandle(keyword, toStr(s.env, args[0]))
	}
	return types.Uninit(), fmt.Errorf("%s: not implemented", keyword)
}

func (s *Socket) listen(addr string, lines bool) types.Value {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return s.fail(err)
	}
	s.mu.Lock()
	s.nextLn++
	h := "ServerSocket:" + ln.Addr().String() + "/" + strconv.Itoa(s.nextLn)
	l := &listener{handle: h, ln: ln, lines: lines, conns: newHandoff[net.Conn](s.acceptSig), done: make(chan struct{})}
	s.listeners[h] = l
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	go l.run(ctx, s.closeSig)
	s.env.Logger.Debug("listening", "handle", h)
	return types.Str(h)
}

func (s *Socket) dial(ctx context.Context, addr string, lines bool) types.Value {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return s.fail(err)
	}
	return types.Str(s.register(nc, lines))
}

func (s *Socket) register(nc net.Conn, lines bool) string {
	s.mu.Lock()
	s.nextConn++
	h := "Socket:" + nc.RemoteAddr().String() + "/" + strconv.Itoa(s.nextConn)
	c := &conn{handle: h, nc: nc, lines: lines, input: newHandoff[string](s.inputSig), done: make(chan struct{})}
	s.conns[h] = c
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx, s.closeSig)
	return h
}

func (s *Socket) accept(ctx context.Context, keyword, handle string) (types.Value, error) {
	s.mu.Lock()
	l, ok := s.listeners[handle]
	s.mu.Unlock()
	if !ok {
		return types.Uninit(), argError(keyword, "invalid server socket handle: %s", handle)
	}
	nc, ok, err := l.conns.take(ctx)
	if err != nil {
		return types.Uninit(), err
	}
	if !ok {
		return s.fail(errors.New("server closed")), nil
	}
	return types.Str(s.register(nc, l.lines)), nil
}

func (s *Socket) read(ctx context.Context, keyword, handle string) (types.Value, error) {
	c, err := s.conn(keyword, handle)
	if err != nil {
		return types.Uninit(), err
	}
	data, ok, err := c.input.take(ctx)
	if err != nil {
		return types.Uninit(), err
	}
	if !ok {
		return s.fail(errors.New("no more input")), nil
	}
	if c.input.finished() && !c.input.pending() {
		s.closeSig.Notify()
	}
	return types.Str(data), nil
}

func (s *Socket) conn(keyword, handle string) (*conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[handle]
	if !ok {
		return nil, argError(keyword, "invalid socket handle: %s", handle)
	}
	return c, nil
}

// closeHandle closes the I/O of a listener or connection, then stops its
// goroutine and waits for it before reporting.
func (s *Socket) closeHandle(keyword, handle string) (types.Value, error) {
	s.mu.Lock()
	var r resource
	if c, ok := s.conns[handle]; ok {
		delete(s.conns, handle)
		r = c
	} else if l, ok := s.listeners[handle]; ok {
		delete(s.listeners, handle)
		r = l
	}
	s.mu.Unlock()
	if r == nil {
		return types.Uninit(), argError(keyword, "invalid [server]socket handle: %s", handle)
	}
	ok := r.shutdown()
	s.env.Logger.Debug("closed", "handle", handle)
	return types.Bool(ok), nil
}

// Close shuts down every listener and connection.
func (s *Socket) Close() error {
	s.mu.Lock()
	var rs []resource
	for h, c := range s.conns {
		rs = append(rs, c)
		delete(s.conns, h)
	}
	for h, l := range s.listeners {
		rs = append(rs, l)
		delete(s.listeners, h)
	}
	s.mu.Unlock()
	for _, r := range rs {
		r.shutdown()
	}
	return nil
}

func (s *Socket) acceptReady(h string) bool {
	s.mu.Lock()
	l, ok := s.listeners[h]
	s.mu.Unlock()
	return ok && l.conns.pending()
}

func (s *Socket) inputReady(h string) bool {
	s.mu.Lock()
	c, ok := s.conns[h]
	s.mu.Unlock()
	return ok && c.input.pending()
}

func (s *Socket) closeReady(h string) bool {
	s.mu.Lock()
	c, isConn := s.conns[h]
	l, isLn := s.listeners[h]
	s.mu.Unlock()
	switch {
	case isConn:
		return c.input.finished() && !c.input.pending()
	case isLn:
		return l.conns.finished() && !l.conns.pending()
	}
	return false
}

// bulk builds a block object released when any of the named handles is
// ready. String arguments are handles; for array arguments each key that
// is a handle is used, otherwise its value. A trailing block object is
// chained after this one.
func (s *Socket) bulk(keyword, tag string, args []types.Value, sig *block.Signal, ready func(string) bool) (types.Value, error) {
	var next block.Object
	if n := len(args); n > 0 {
		if o, ok := args[n-1].Object().(block.Object); ok {
			next = o
			args = args[:n-1]
		}
	}

	var handles []string
	for _, a := range args {
		if arr := a.Array(); arr != nil {
			for _, k := range arr.Keys() {
				if s.known(k) {
					handles = append(handles, k)
					continue
				}
				v, _ := arr.Get(k)
				handles = append(handles, toStr(s.env, v))
			}
			continue
		}
		handles = append(handles, toStr(s.env, a))
	}
	for _, h := range handles {
		if !s.known(h) {
			return types.Uninit(), argError(keyword, "invalid socket handle: %s", h)
		}
	}

	b := &bulkObject{tag: tag, ofs: s.env.Vars.OFS(), handles: handles, sig: sig, ready: ready}
	if next != nil {
		return types.Opaque(block.Chain(b, next)), nil
	}
	return types.Opaque(b), nil
}

func (s *Socket) known(h string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, isConn := s.conns[h]
	_, isLn := s.listeners[h]
	return isConn || isLn
}

// bulkObject waits on a set of handles. Its tag names the kind of event and
// the handle that became ready, separated by OFS.
type bulkObject struct {
	tag     string
	ofs     string
	handles []string
	sig     *block.Signal
	ready   func(string) bool

	hit atomic.Pointer[string]
}

func (b *bulkObject) Tag() string {
	if h := b.hit.Load(); h != nil {
		return b.tag + b.ofs + *h
	}
	return b.tag
}

func (b *bulkObject) Wait(ctx context.Context) error {
	return b.sig.Until(ctx, func() bool {
		for _, h := range b.handles {
			if b.ready(h) {
				b.hit.Store(&h)
				return true
			}
		}
		return false
	})
}

type resource interface {
	shutdown() bool
}

type listener struct {
	handle string
	ln     net.Listener
	lines  bool
	conns  *handoff[net.Conn]
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *listener) run(ctx context.Context, closed *block.Signal) {
	defer close(l.done)
	defer closed.Notify()
	defer l.conns.finish()
	for {
		nc, err := l.ln.Accept()
		if err != nil {
			return
		}
		if err := l.conns.put(ctx, nc); err != nil {
			nc.Close()
			return
		}
	}
}

func (l *listener) shutdown() bool {
	err := l.ln.Close()
	l.cancel()
	<-l.done
	// Drop a connection accepted but never claimed.
	if nc, ok := l.conns.drain(); ok {
		nc.Close()
	}
	return err == nil
}

type conn struct {
	handle string
	nc     net.Conn
	lines  bool
	input  *handoff[string]
	cancel context.CancelFunc
	done   chan struct{}
	wmu    sync.Mutex
}

func (c *conn) run(ctx context.Context, closed *block.Signal) {
	defer close(c.done)
	defer closed.Notify()
	defer c.input.finish()

	if c.lines {
		r := bufio.NewReader(c.nc)
		for {
			line, err := r.ReadString('\n')
			if line != "" && (err == nil || errors.Is(err, io.EOF)) {
				line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
				if c.input.put(ctx, line) != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}
	buf := make([]byte, socketReadSize)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			if c.input.put(ctx, string(buf[:n])) != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *conn) write(s string) error {
	if c.lines {
		s += "\n"
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := io.WriteString(c.nc, s)
	return err
}

func (c *conn) shutdown() bool {
	err := c.nc.Close()
	c.cancel()
	<-c.done
	return err == nil
}
