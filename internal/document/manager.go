package document

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"promptscene/internal/logging"
)

// Origin tags a change with the surface that caused it, so a view can skip
// echoes of its own edits.
type Origin string

const (
	OriginNone     Origin = ""
	OriginForm     Origin = "form"
	OriginText     Origin = "text"
	OriginFile     Origin = "file"
	OriginExternal Origin = "external"
)

// ChangeNotification is delivered to every observer after each committed
// change. Tree is a snapshot shared by all observers of the change; it is
// never touched by the manager again and must not be modified.
type ChangeNotification struct {
	Tree   *Node
	Text   string
	Valid  bool
	Err    error
	Origin Origin
	Seq    uint64
}

// Observer receives change notifications.
type Observer interface {
	OnChange(ChangeNotification)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ChangeNotification)

// OnChange calls f(n).
func (f ObserverFunc) OnChange(n ChangeNotification) { f(n) }

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id  string
	m   *Manager
	obs Observer
}

// ID returns the subscription's unique id.
func (s *Subscription) ID() string { return s.id }

// Unsubscribe stops delivery to the observer. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.m == nil {
		return
	}
	s.m.Unsubscribe(s)
}

// Logger is the subset of logging.Logger the manager writes to.
type Logger interface {
	Debug(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Option configures a Manager.
type Option func(*Manager)

// WithCodec replaces the default two-space YAML codec.
func WithCodec(c Codec) Option {
	return func(m *Manager) {
		if c != nil {
			m.codec = c
		}
	}
}

// WithDebounce sets the delay for non-immediate conversions. Zero schedules
// the conversion as soon as the timer goroutine runs.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.delay = d
		}
	}
}

// WithLogger replaces the document category logger.
func WithLogger(l Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingParse
	pendingDump
)

// slowConversion is the threshold above which conversions are logged as slow.
const slowConversion = 50 * time.Millisecond

// Manager owns the canonical scene tree and its text form. Every mutation
// ends in one conversion and one notification; invalid text never replaces
// the last valid tree. Mutations never fail: parse, serialization and
// resolution errors surface through Err and the notification.
//
// A Manager is safe for concurrent use. Notifications are delivered in
// commit order, outside the state lock, so an observer may call back into
// the manager; such a change is delivered after the current one.
type Manager struct {
	mu       sync.Mutex
	codec    Codec
	delay    time.Duration
	log      Logger
	debounce *Debouncer

	tree   *Node
	text   string
	valid  bool
	err    error
	origin Origin

	pending       pendingKind
	pendingOrigin Origin

	subs   []*Subscription
	queue  []ChangeNotification
	seq    uint64
	closed bool

	deliverMu sync.Mutex
}

// NewManager parses initialText into the starting tree. Blank text starts as
// an empty map. Invalid text is kept and the tree starts empty.
func NewManager(initialText string, opts ...Option) *Manager {
	m := &Manager{
		codec: NewYAMLCodec(DefaultIndent),
		log:   logging.Get(logging.CategoryDocument),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.debounce = NewDebouncer(m.delay)

	m.text = initialText
	tree, err := m.codec.Parse(initialText)
	if err != nil {
		m.log.Warn("initial text does not parse: %v", err)
		m.tree = NewMap()
		m.err = err
		return m
	}
	m.tree = tree
	m.valid = true
	return m
}

// Tree returns a copy of the canonical tree.
func (m *Manager) Tree() *Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.Clone()
}

// Text returns the current text, which may be invalid.
func (m *Manager) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Valid reports whether Text and Tree currently agree.
func (m *Manager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// Err returns the error from the most recent conversion or resolution.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// LastOrigin returns the origin of the change being delivered. It reads
// OriginNone once every queued notification has been delivered.
func (m *Manager) LastOrigin() Origin {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.origin
}

// Snapshot returns the current state as a notification with OriginNone,
// for observers that need an initial render.
func (m *Manager) Snapshot() ChangeNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ChangeNotification{
		Tree:  m.tree.Clone(),
		Text:  m.text,
		Valid: m.valid,
		Err:   m.err,
		Seq:   m.seq,
	}
}

// Subscribe registers obs for every later change.
func (m *Manager) Subscribe(obs Observer) *Subscription {
	sub := &Subscription{id: uuid.New().String(), m: m, obs: obs}
	if obs == nil {
		return sub
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return sub
	}
	m.subs = append(m.subs, sub)
	m.log.Debug("subscribed %s (%d observers)", sub.id, len(m.subs))
	return sub
}

// Unsubscribe removes sub. Unknown or already removed subscriptions are ignored.
func (m *Manager) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s == sub {
			m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
			m.log.Debug("unsubscribed %s", sub.id)
			return
		}
	}
}

// Flush applies a pending debounced conversion now.
func (m *Manager) Flush() {
	m.debounce.Flush()
}

// Close cancels pending work and drops all observers. Later mutations are
// ignored.
func (m *Manager) Close() {
	m.debounce.Cancel()
	m.mu.Lock()
	m.closed = true
	m.pending = pendingNone
	m.subs = nil
	m.queue = nil
	m.mu.Unlock()
}

// SetText stores text as typed and converts it to a tree, now or after the
// debounce delay. Text that does not parse keeps the last valid tree.
func (m *Manager) SetText(text string, origin Origin, immediate bool) {
	m.store(pendingParse, origin, immediate, func() { m.text = text })
}

// SetTree stores tree and serializes it, now or after the debounce delay.
// The manager takes ownership of tree. A tree that cannot be serialized is
// kept, while the text stays at its last valid value.
func (m *Manager) SetTree(tree *Node, origin Origin, immediate bool) {
	m.store(pendingDump, origin, immediate, func() { m.tree = orNull(tree) })
}

// store applies set under the lock and converts in the direction kind
// names. An immediate store replaces any pending conversion.
func (m *Manager) store(kind pendingKind, origin Origin, immediate bool, set func()) {
	if !immediate {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			return
		}
		set()
		m.schedule(kind, origin)
		return
	}
	m.debounce.Immediate(func() {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		set()
		m.pending = pendingNone
		if kind == pendingParse {
			m.commitText(origin)
		} else {
			m.commitTree(origin)
		}
		m.mu.Unlock()
		m.deliver()
	})
}

// UpdatePath writes value at path, creating intermediate containers.
func (m *Manager) UpdatePath(path string, value *Node, origin Origin, immediate bool) {
	m.mutate("update "+path, origin, immediate, func(tree *Node) (*Node, bool, error) {
		out, err := Assign(tree, path, value.Clone())
		return out, err == nil, err
	})
}

// AddArrayItem appends to the array at path, converting whatever is there
// into an array first. When the first element is a map, the new element is
// a map with the same keys and empty defaults; otherwise seed is appended.
func (m *Manager) AddArrayItem(path string, seed *Node, origin Origin, immediate bool) {
	m.mutate("add item "+path, origin, immediate, func(tree *Node) (*Node, bool, error) {
		p, err := ParsePath(path)
		if err != nil {
			return tree, false, err
		}
		cur, _ := ResolvePath(tree, p)
		arr := CoerceToArray(cur)

		var item *Node
		if first, ok := arr.Index(0); ok && first.Kind() == KindMap {
			item = NewMap()
			for _, k := range first.keys {
				item.Set(k, ZeroLike(first.fields[k]))
			}
		} else {
			item = seed.Clone()
		}
		arr.Append(item)

		out, err := AssignPath(tree, p, arr)
		return out, err == nil, err
	})
}

// RemoveArrayItem splices out element index of the array at path. An
// out-of-range index, or a path that is not an array, changes nothing.
func (m *Manager) RemoveArrayItem(path string, index int, origin Origin, immediate bool) {
	m.mutate("remove item "+path, origin, immediate, func(tree *Node) (*Node, bool, error) {
		p, err := ParsePath(path)
		if err != nil {
			return tree, false, err
		}
		arr, ok := ResolvePath(tree, p)
		if !ok || arr.Kind() != KindArray {
			return tree, false, nil
		}
		return tree, arr.RemoveIndex(index), nil
	})
}

// AddObjectProperty sets key on the map at path. When path holds an array,
// key is set on every map element of it. An absent or null location becomes
// a new map holding only key.
func (m *Manager) AddObjectProperty(path, key string, value *Node, origin Origin, immediate bool) {
	m.mutate("add property "+JoinKey(path, key), origin, immediate, func(tree *Node) (*Node, bool, error) {
		if key == "" {
			return tree, false, errors.New("add property: empty key")
		}
		p, err := ParsePath(path)
		if err != nil {
			return tree, false, err
		}
		cur, ok := ResolvePath(tree, p)
		switch {
		case !ok || cur.Kind() == KindNull:
			fresh := NewMap()
			fresh.Set(key, value.Clone())
			out, err := AssignPath(tree, p, fresh)
			return out, err == nil, err
		case cur.Kind() == KindMap:
			cur.Set(key, value.Clone())
			return tree, true, nil
		case cur.Kind() == KindArray:
			changed := false
			for _, it := range cur.items {
				if it.Kind() == KindMap {
					it.Set(key, value.Clone())
					changed = true
				}
			}
			return tree, changed, nil
		}
		return tree, false, fmt.Errorf("add property %q at %q: %w", key, path, ErrNotContainer)
	})
}

// RemoveObjectProperty deletes key from the map at path, or from every map
// element when path holds an array.
func (m *Manager) RemoveObjectProperty(path, key string, origin Origin, immediate bool) {
	m.mutate("remove property "+JoinKey(path, key), origin, immediate, func(tree *Node) (*Node, bool, error) {
		p, err := ParsePath(path)
		if err != nil {
			return tree, false, err
		}
		cur, ok := ResolvePath(tree, p)
		if !ok {
			return tree, false, nil
		}
		switch cur.Kind() {
		case KindMap:
			return tree, cur.Delete(key), nil
		case KindArray:
			changed := false
			for _, it := range cur.items {
				if it.Delete(key) {
					changed = true
				}
			}
			return tree, changed, nil
		case KindNull:
			return tree, false, nil
		}
		return tree, false, fmt.Errorf("remove property %q at %q: %w", key, path, ErrNotContainer)
	})
}

// mutate runs a structural edit against the canonical tree. fn returns the
// new root, whether anything changed, and a resolution error. fn must leave
// the tree untouched when it returns an error.
func (m *Manager) mutate(op string, origin Origin, immediate bool, fn func(tree *Node) (*Node, bool, error)) {
	// Pending typed text is applied first so the edit lands on the newest tree.
	m.debounce.Flush()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	out, changed, err := fn(m.tree)
	if err != nil {
		m.log.Warn("%s: %v", op, err)
		m.err = err
		m.enqueue(origin, logging.AuditDocCommit)
		m.mu.Unlock()
		m.deliver()
		return
	}
	if !changed {
		m.log.Debug("%s: no change", op)
		m.mu.Unlock()
		return
	}
	m.tree = out
	if !immediate {
		m.schedule(pendingDump, origin)
		m.mu.Unlock()
		return
	}
	m.commitTree(origin)
	m.mu.Unlock()
	m.deliver()
}

// schedule arms the debouncer. Caller holds mu.
func (m *Manager) schedule(kind pendingKind, origin Origin) {
	m.pending = kind
	m.pendingOrigin = origin
	m.debounce.Debounce(m.convertPending)
}

func (m *Manager) convertPending() {
	m.mu.Lock()
	kind, origin := m.pending, m.pendingOrigin
	m.pending = pendingNone
	if m.closed {
		m.mu.Unlock()
		return
	}
	switch kind {
	case pendingParse:
		m.commitText(origin)
	case pendingDump:
		m.commitTree(origin)
	default:
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.deliver()
}

// commitText parses the current text. Caller holds mu.
func (m *Manager) commitText(origin Origin) {
	timer := logging.StartTimer(logging.CategoryDocument, "parse")
	tree, err := m.codec.Parse(m.text)
	timer.StopWithThreshold(slowConversion)
	if err != nil {
		m.log.Debug("text from %q does not parse: %v", origin, err)
		m.valid = false
		m.err = err
		m.enqueue(origin, logging.AuditDocParseError)
		return
	}
	m.tree = tree
	m.valid = true
	m.err = nil
	m.enqueue(origin, logging.AuditDocCommit)
}

// commitTree serializes the current tree. Caller holds mu.
func (m *Manager) commitTree(origin Origin) {
	timer := logging.StartTimer(logging.CategoryDocument, "dump")
	text, err := m.codec.Dump(m.tree)
	timer.StopWithThreshold(slowConversion)
	if err != nil {
		m.log.Error("tree from %q does not serialize: %v", origin, err)
		m.valid = false
		m.err = err
		m.enqueue(origin, logging.AuditDocSerializeError)
		return
	}
	m.text = text
	m.valid = true
	m.err = nil
	m.enqueue(origin, logging.AuditDocCommit)
}

// enqueue records a notification of the current state. Caller holds mu.
func (m *Manager) enqueue(origin Origin, ev logging.AuditEventType) {
	m.seq++
	m.origin = origin
	m.queue = append(m.queue, ChangeNotification{
		Tree:   m.tree.Clone(),
		Text:   m.text,
		Valid:  m.valid,
		Err:    m.err,
		Origin: origin,
		Seq:    m.seq,
	})
	errMsg := ""
	if m.err != nil {
		errMsg = m.err.Error()
	}
	logging.Audit().Commit(string(origin), ev, errMsg)
}

// deliver drains the queue. Only one goroutine delivers at a time; a caller
// that finds delivery in progress leaves its notification to that goroutine.
func (m *Manager) deliver() {
	for {
		if !m.deliverMu.TryLock() {
			return
		}
		for {
			m.mu.Lock()
			if len(m.queue) == 0 {
				m.origin = OriginNone
				m.mu.Unlock()
				break
			}
			n := m.queue[0]
			m.queue = m.queue[1:]
			m.origin = n.Origin
			subs := make([]*Subscription, len(m.subs))
			copy(subs, m.subs)
			m.mu.Unlock()

			for _, s := range subs {
				m.notify(s, n)
			}
		}
		m.deliverMu.Unlock()

		// A notification enqueued after the last check but before Unlock
		// would otherwise wait for the next mutation.
		m.mu.Lock()
		empty := len(m.queue) == 0
		m.mu.Unlock()
		if empty {
			return
		}
	}
}

func (m *Manager) notify(s *Subscription, n ChangeNotification) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("observer %s panicked on change %d: %v", s.id, n.Seq, r)
			logging.Audit().ObserverPanic(s.id, r)
		}
	}()
	s.obs.OnChange(n)
}
