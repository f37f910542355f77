// Package feed keeps the task list for one scope (a project or the personal
// view) in sync with the server: it fetches the list whenever the scope
// changes, applies item_created / item_updated / item_deleted pushes to it,
// and moves the push channel room membership along with the scope.
//
// A fetch is the synchronization point: its result replaces the list
// wholesale, healing any push that was missed or applied out of order.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/api"
	"github.com/BuzzLyutic/task-sync-client/internal/model"
	"github.com/BuzzLyutic/task-sync-client/internal/realtime"
)

var (
	// ErrStale is returned by FetchItems when a newer fetch started before
	// this one completed; its response was discarded.
	ErrStale = errors.New("stale fetch discarded")
	// ErrClosed is returned by FetchItems once the feed has been closed.
	ErrClosed = errors.New("feed closed")
)

type ItemLister interface {
	ListItems(ctx context.Context, q api.ItemQuery) ([]model.Item, error)
}

// Channel is the part of the push connection a feed uses.
type Channel interface {
	Connect(ctx context.Context) error
	IsOpen() bool
	On(event string, fn realtime.Handler) func()
	Join(ctx context.Context, r realtime.Room) error
	Leave(ctx context.Context, r realtime.Room) error
}

type Identity interface {
	CurrentUserID() (int64, bool)
}

type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	}
	return "idle"
}

type Option func(*Feed)

// WithOnChange registers fn to receive a copy of the list after every change.
func WithOnChange(fn func(scope model.Scope, items []model.Item)) Option {
	return func(f *Feed) { f.onChange = fn }
}

type Feed struct {
	items    ItemLister
	ch       Channel
	ident    Identity
	logger   *zap.Logger
	onChange func(model.Scope, []model.Item)

	mu          sync.Mutex
	list        []model.Item
	loading     bool
	fetched     bool
	scope       model.Scope
	started     bool
	closed      bool
	gen         uint64
	unsubscribe []func()

	// room is the scope whose room the channel was last told to join.
	roomMu  sync.Mutex
	room    model.Scope
	hasRoom bool
}

func New(items ItemLister, ch Channel, ident Identity, logger *zap.Logger, opts ...Option) *Feed {
	f := &Feed{
		items:  items,
		ch:     ch,
		ident:  ident,
		logger: logger,
		list:   []model.Item{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open connects the push channel, attaches the item listeners and runs the
// first scope transition. Without a connection the feed still fetches; only
// live updates are missing.
func (f *Feed) Open(ctx context.Context, scope model.Scope) {
	if err := f.ch.Connect(ctx); err != nil {
		f.logger.Warn("push channel unavailable, live updates disabled", zap.Error(err))
	} else {
		f.attach()
	}
	f.SetScope(ctx, scope)
}

// Close detaches the listeners and leaves the project room. The shared
// connection stays open for other consumers.
func (f *Feed) Close(ctx context.Context) {
	f.mu.Lock()
	f.closed = true
	unsubscribe := f.unsubscribe
	f.unsubscribe = nil
	f.mu.Unlock()

	for _, off := range unsubscribe {
		off()
	}

	f.roomMu.Lock()
	defer f.roomMu.Unlock()
	id, ok := f.room.ProjectID()
	if !f.hasRoom || !ok || !f.ch.IsOpen() {
		return
	}
	if err := f.ch.Leave(ctx, realtime.ProjectRoom(id)); err != nil {
		f.logger.Warn("leave project room on close failed", zap.Int64("project_id", id), zap.Error(err))
	}
	f.hasRoom = false
}

func (f *Feed) attach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.unsubscribe) > 0 || f.closed {
		return
	}
	f.unsubscribe = []func(){
		f.ch.On(model.EventItemCreated, f.onCreated),
		f.ch.On(model.EventItemUpdated, f.onUpdated),
		f.ch.On(model.EventItemDeleted, f.onDeleted),
	}
}

// SetScope switches the feed to scope: the list is refetched, then the room
// for the previous scope is left and the room for the new one joined.
// Setting the current scope again does nothing.
func (f *Feed) SetScope(ctx context.Context, next model.Scope) {
	f.mu.Lock()
	if f.closed || (f.started && f.scope == next) {
		f.mu.Unlock()
		return
	}
	prev := f.scope
	f.scope = next
	f.started = true
	f.mu.Unlock()

	f.logger.Info("scope changed", zap.Stringer("from", prev), zap.Stringer("to", next))

	// A stale result still moves the rooms: a manual refresh may have
	// overtaken this fetch without changing the scope.
	if err := f.FetchItems(ctx); errors.Is(err, ErrClosed) {
		return
	}

	if cur := f.Scope(); cur != next {
		f.logger.Debug("scope moved on during fetch, room change skipped", zap.Stringer("scope", next))
		return
	}
	f.changeRooms(ctx, next)
}

// changeRooms leaves the room joined for an earlier scope, if any, and joins
// the room for next. The first transition only joins.
func (f *Feed) changeRooms(ctx context.Context, next model.Scope) {
	f.roomMu.Lock()
	defer f.roomMu.Unlock()

	// Close may have run while the fetch was in flight.
	if f.isClosed() {
		return
	}
	if !f.ch.IsOpen() {
		f.logger.Warn("cannot change room: push channel not connected", zap.Stringer("scope", next))
		return
	}
	userID, ok := f.ident.CurrentUserID()
	if !ok {
		f.logger.Error("user id unknown, room change skipped", zap.Stringer("scope", next))
		return
	}

	if f.hasRoom {
		if f.room == next {
			return
		}
		room := realtime.RoomFor(f.room, userID)
		if err := f.ch.Leave(ctx, room); err != nil {
			f.logger.Warn("leave room failed", zap.String("room", room.Name), zap.Error(err))
		}
		f.hasRoom = false
	}

	room := realtime.RoomFor(next, userID)
	if err := f.ch.Join(ctx, room); err != nil {
		f.logger.Warn("join room failed", zap.String("room", room.Name), zap.Error(err))
		return
	}
	f.room, f.hasRoom = next, true
}

// FetchItems replaces the list with the server's tasks for the current
// scope. On failure the list is emptied. The loading flag is cleared either
// way unless a newer fetch has taken over.
func (f *Feed) FetchItems(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.gen++
	gen, scope := f.gen, f.scope
	f.loading = true
	f.mu.Unlock()

	f.logger.Debug("fetching items", zap.Stringer("scope", scope))
	items, err := f.items.ListItems(ctx, api.ItemQuery{Type: model.TypeTask, Scope: scope})

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if gen != f.gen {
		f.mu.Unlock()
		f.logger.Debug("stale fetch discarded", zap.Stringer("scope", scope))
		return ErrStale
	}
	f.loading = false
	f.fetched = true
	if err != nil {
		f.list = []model.Item{}
	} else {
		f.list = append(make([]model.Item, 0, len(items)), items...)
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Error("fetch items failed", zap.Stringer("scope", scope), zap.Error(err))
	}
	f.notify()
	return err
}

func (f *Feed) onCreated(data json.RawMessage) {
	item, err := model.DecodeItem(data)
	if err != nil {
		f.logger.Warn("item_created dropped", zap.Error(err))
		return
	}
	f.applyCreated(item)
}

func (f *Feed) onUpdated(data json.RawMessage) {
	item, err := model.DecodeItem(data)
	if err != nil {
		f.logger.Warn("item_updated dropped", zap.Error(err))
		return
	}
	f.applyUpdated(item)
}

func (f *Feed) onDeleted(data json.RawMessage) {
	ev, err := model.DecodeItemDeleted(data)
	if err != nil {
		f.logger.Warn("item_deleted dropped", zap.Error(err))
		return
	}
	f.applyDeleted(ev)
}

// applyCreated adds item at the front when it belongs to the scope, is a
// task and is not already listed.
func (f *Feed) applyCreated(item model.Item) {
	f.mu.Lock()
	if !f.started || f.closed {
		f.mu.Unlock()
		return
	}
	if !f.belongs(item) || f.indexOf(item.ID) >= 0 {
		f.mu.Unlock()
		f.logger.Debug("item_created ignored", zap.Int64("item_id", item.ID), zap.Stringer("scope", f.Scope()))
		return
	}
	f.list = append([]model.Item{item}, f.list...)
	f.mu.Unlock()

	f.notify()
}

// applyUpdated replaces, removes or inserts the item depending on whether it
// is listed and whether it still belongs to the scope.
func (f *Feed) applyUpdated(item model.Item) {
	f.mu.Lock()
	if !f.started || f.closed {
		f.mu.Unlock()
		return
	}
	idx := f.indexOf(item.ID)
	belongs := f.belongs(item)

	switch {
	case idx >= 0 && belongs:
		f.list[idx] = item
	case idx >= 0:
		f.list = append(f.list[:idx:idx], f.list[idx+1:]...)
	case belongs:
		f.list = append([]model.Item{item}, f.list...)
	default:
		f.mu.Unlock()
		f.logger.Debug("item_updated ignored", zap.Int64("item_id", item.ID))
		return
	}
	f.mu.Unlock()

	f.notify()
}

// applyDeleted removes the item by id; the payload's project id is not consulted.
func (f *Feed) applyDeleted(ev model.ItemDeleted) {
	f.mu.Lock()
	idx := f.indexOf(ev.ID)
	if f.closed || idx < 0 {
		f.mu.Unlock()
		return
	}
	f.list = append(f.list[:idx:idx], f.list[idx+1:]...)
	f.mu.Unlock()

	f.notify()
}

func (f *Feed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Feed) belongs(item model.Item) bool {
	return item.Type == model.TypeTask && f.scope.Matches(item.ProjectID)
}

func (f *Feed) indexOf(id int64) int {
	for i, it := range f.list {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (f *Feed) notify() {
	if f.onChange == nil {
		return
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	scope := f.scope
	items := append([]model.Item(nil), f.list...)
	f.mu.Unlock()

	f.onChange(scope, items)
}

// Items returns a copy of the current list, most recent first.
func (f *Feed) Items() []model.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Item{}, f.list...)
}

func (f *Feed) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *Feed) Scope() model.Scope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scope
}

func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.loading:
		return StateLoading
	case f.fetched:
		return StateReady
	}
	return StateIdle
}
