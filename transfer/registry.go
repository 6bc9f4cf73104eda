/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package transfer

import (
	"fmt"
	"sync"
)

// Registry indexes active transfer sessions by stream identifier.
type Registry struct {
	sessions sync.Map
}

// NewRegistry returns an empty session registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a session. Stream identifiers must be unique across
// active sessions.
func (r *Registry) Add(sess *Session) error {
	if _, loaded := r.sessions.LoadOrStore(sess.SID, sess); loaded {
		return fmt.Errorf("transfer: session identifier conflict: %s", sess.SID)
	}
	return nil
}

// Get resolves an active session by stream identifier.
func (r *Registry) Get(sid string) *Session {
	if sess, ok := r.sessions.Load(sid); ok {
		return sess.(*Session)
	}
	return nil
}

// Remove deregisters a session.
func (r *Registry) Remove(sid string) {
	r.sessions.Delete(sid)
}

// All returns a snapshot of every active session.
func (r *Registry) All() []*Session {
	var ret []*Session
	r.sessions.Range(func(_, value interface{}) bool {
		ret = append(ret, value.(*Session))
		return true
	})
	return ret
}
