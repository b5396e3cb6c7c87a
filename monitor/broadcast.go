package monitor

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

// Broadcaster fans messages out to every connected websocket client.
// Clients that can't keep up are dropped.
type Broadcaster struct {
	sockets    []*websocket.Conn
	sockets_mu sync.Mutex
	messages   chan []byte
	quit       chan struct{}
	done       chan struct{}
}

func NewBroadcaster() *Broadcaster {
	ret := &Broadcaster{
		messages: make(chan []byte, 1024),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go ret.writer()
	return ret
}

// Send queues msg for all clients. It returns false when the queue is full.
func (u *Broadcaster) Send(msg []byte) bool {
	select {
	case u.messages <- msg:
		return true
	default:
		return false
	}
}

func (u *Broadcaster) AddSocket(sock *websocket.Conn) {
	u.sockets_mu.Lock()
	u.sockets = append(u.sockets, sock)
	u.sockets_mu.Unlock()
}

// Clients returns the number of connected sockets.
func (u *Broadcaster) Clients() int {
	u.sockets_mu.Lock()
	defer u.sockets_mu.Unlock()
	return len(u.sockets)
}

// Handler registers each incoming websocket and keeps it open until the
// client goes away.
func (u *Broadcaster) Handler() http.Handler {
	return websocket.Server{
		Handler: websocket.Handler(func(conn *websocket.Conn) {
			u.AddSocket(conn)
			// Block on reads so the connection stays up; clients never send.
			var discard []byte
			for websocket.Message.Receive(conn, &discard) == nil {
			}
		}),
	}
}

// Close stops the writer and closes every socket.
func (u *Broadcaster) Close() {
	close(u.quit)
	<-u.done
	u.sockets_mu.Lock()
	for _, sock := range u.sockets {
		sock.Close()
	}
	u.sockets = nil
	u.sockets_mu.Unlock()
}

func (u *Broadcaster) writer() {
	defer close(u.done)
	for {
		var msg []byte
		select {
		case <-u.quit:
			return
		case msg = <-u.messages:
		}

		p := make([]*websocket.Conn, 0) // Keep a list of the writeable sockets.
		u.sockets_mu.Lock()
		for _, sock := range u.sockets {
			err := sock.SetWriteDeadline(time.Now().Add(time.Second))
			_, err2 := sock.Write(msg)
			if err == nil && err2 == nil {
				p = append(p, sock)
			} else {
				sock.Close()
			}
		}
		u.sockets = p
		u.sockets_mu.Unlock()
	}
}
