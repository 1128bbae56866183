package vm

import "sync"

// ---------------------------------------------------------------------------
// Monitor service
// ---------------------------------------------------------------------------

// Monitors is the intrinsic-lock service. AbortFrame releases everything
// a frame still holds; it is the forced-termination path and must not
// fail.
type Monitors interface {
	Enter(fr *Frame, obj *Object)
	Exit(fr *Frame, obj *Object)
	AbortFrame(fr *Frame)
}

type monitorState struct {
	owner *Frame
	count int
	cond  *sync.Cond
}

// MonitorRegistry is the reference Monitors implementation: a table of
// per-object reentrant locks plus a per-frame record of held monitors so
// aborts can release them.
type MonitorRegistry struct {
	mu    sync.Mutex
	locks map[*Object]*monitorState
	held  map[*Frame][]*Object
}

// NewMonitorRegistry creates an empty registry.
func NewMonitorRegistry() *MonitorRegistry {
	return &MonitorRegistry{
		locks: make(map[*Object]*monitorState),
		held:  make(map[*Frame][]*Object),
	}
}

func (r *MonitorRegistry) Enter(fr *Frame, obj *Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.locks[obj]
	if st == nil {
		st = &monitorState{}
		st.cond = sync.NewCond(&r.mu)
		r.locks[obj] = st
	}
	for st.owner != nil && st.owner != fr {
		st.cond.Wait()
	}
	st.owner = fr
	st.count++
	r.held[fr] = append(r.held[fr], obj)
}

func (r *MonitorRegistry) Exit(fr *Frame, obj *Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exitLocked(fr, obj)
}

func (r *MonitorRegistry) exitLocked(fr *Frame, obj *Object) {
	st := r.locks[obj]
	if st == nil || st.owner != fr {
		return
	}
	st.count--
	hs := r.held[fr]
	for i := len(hs) - 1; i >= 0; i-- {
		if hs[i] == obj {
			r.held[fr] = append(hs[:i], hs[i+1:]...)
			break
		}
	}
	if st.count == 0 {
		st.owner = nil
		st.cond.Broadcast()
	}
}

// AbortFrame releases every monitor the frame still holds.
func (r *MonitorRegistry) AbortFrame(fr *Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.held[fr]) > 0 {
		r.exitLocked(fr, r.held[fr][len(r.held[fr])-1])
	}
	delete(r.held, fr)
}

var _ Monitors = (*MonitorRegistry)(nil)
