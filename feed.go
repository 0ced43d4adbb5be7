package authflow

import "sync"

// SessionFeed fans session changes out to subscribers. Provider
// implementations embed one to satisfy Provider.Subscribe.
//
// Deliveries are serialized so every subscriber sees changes in publish
// order. Callbacks may unsubscribe but must not call Publish.
type SessionFeed struct {
	deliverMu sync.Mutex

	mu      sync.Mutex
	current *User
	nextID  int
	subs    map[int]func(*User)
}

// Subscribe registers fn and immediately delivers the current user to it
func (f *SessionFeed) Subscribe(fn func(*User)) func() {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[int]func(*User))
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	current := copyUser(f.current)
	f.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Publish records u as the current user (nil for signed out) and notifies subscribers
func (f *SessionFeed) Publish(u *User) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	f.current = copyUser(u)
	fns := make([]func(*User), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(copyUser(u))
	}
}

// Current returns the last published user
func (f *SessionFeed) Current() *User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyUser(f.current)
}

// Len returns the number of active subscriptions
func (f *SessionFeed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

// listenerSet holds change listeners for controllers.
type listenerSet[T any] struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(T)
}

func (l *listenerSet[T]) add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(T))
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listenerSet[T]) notify(v T) {
	l.mu.Lock()
	fns := make([]func(T), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
