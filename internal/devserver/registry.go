package devserver

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Registry tracks the live sockets the dev server is handling.
type Registry struct {
	connections sync.Map
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Add(conn *websocket.Conn) {
	r.connections.Store(conn, struct{}{})
}

func (r *Registry) Remove(conn *websocket.Conn) {
	r.connections.Delete(conn)
}

func (r *Registry) Has(conn *websocket.Conn) bool {
	_, exists := r.connections.Load(conn)
	return exists
}

func (r *Registry) Count() int {
	count := 0
	r.connections.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}
