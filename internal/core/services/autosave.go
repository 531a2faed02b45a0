package services

import (
	"time"

	"github.com/custodia-labs/mirae/internal/core/domain"
	"github.com/custodia-labs/mirae/internal/core/ports/driven"
	"github.com/custodia-labs/mirae/internal/logger"
)

var autosaveLog = logger.Scope("autosave")

// pageWriter issues optimistic page updates.
type pageWriter interface {
	UpdatePage(id string, fields domain.PageFields) (*Mutation, error)
	DurableID(id string) (string, bool)
}

// Autosave tracks unsaved edits to the open page and commits them after
// a debounce delay.
//
//	Clean --edit--> Dirty --timer or Save--> Saving --ok--> Clean
//	                  ^                         |
//	                  +------fail or new edit---+
//
// Title and content edits arm separate timers. Whichever fires first
// commits the whole snapshot. At most one commit per page is in flight.
type Autosave struct {
	loop     driven.EventLoop
	writer   pageWriter
	settings domain.AutosaveSettings

	docID string
	epoch uint64
	state domain.SaveState

	pending   domain.PageFields
	editSeq   uint64
	issuedSeq uint64
	lastErr   error

	inflight    *Mutation
	commitAfter bool

	titleTimer   driven.Timer
	contentTimer driven.Timer

	onChange func(domain.SaveState)
}

// NewAutosave creates an autosave machine with no open page.
func NewAutosave(loop driven.EventLoop, writer pageWriter, settings domain.AutosaveSettings) *Autosave {
	return &Autosave{
		loop:     loop,
		writer:   writer,
		settings: settings,
	}
}

// OnChange registers fn to run on every state transition.
func (a *Autosave) OnChange(fn func(domain.SaveState)) {
	a.onChange = fn
}

// DocumentID returns the open page id, or "".
func (a *Autosave) DocumentID() string {
	return a.docID
}

// State returns the save state of the open page.
func (a *Autosave) State() domain.SaveState {
	return a.state
}

// InFlight returns true while a commit awaits its remote result.
func (a *Autosave) InFlight() bool {
	return a.inflight != nil
}

// Armed returns true while a debounce timer is pending.
func (a *Autosave) Armed() bool {
	return a.titleTimer != nil || a.contentTimer != nil
}

// Settings returns the active autosave settings.
func (a *Autosave) Settings() domain.AutosaveSettings {
	return a.settings
}

// LastError returns the error of the last failed commit, cleared by the next success.
func (a *Autosave) LastError() error {
	return a.lastErr
}

// Pending returns the uncommitted edits.
func (a *Autosave) Pending() domain.PageFields {
	return a.pending
}

// Overlay returns p with uncommitted edits applied when p is the open page.
func (a *Autosave) Overlay(p domain.Page) domain.Page {
	if p.ID != a.docID || a.pending.IsEmpty() {
		return p
	}
	return a.pending.Apply(p)
}

// Open switches to page id. Uncommitted edits to the previous page are
// committed first. An empty id closes the editor.
func (a *Autosave) Open(id string) {
	if id == a.docID {
		return
	}
	if a.docID != "" && !a.pending.IsEmpty() {
		a.handOff()
	}
	a.reset(id)
	autosaveLog.Debug("opened %q", id)
}

// EditTitle records a title edit.
func (a *Autosave) EditTitle(title string) error {
	if a.docID == "" {
		return domain.ErrNoOpenPage
	}
	a.pending.Title = &title
	a.markDirty()
	a.titleTimer = a.rearm(a.titleTimer, a.settings.TitleDelay)
	return nil
}

// EditContent records a content edit.
func (a *Autosave) EditContent(content string) error {
	if a.docID == "" {
		return domain.ErrNoOpenPage
	}
	a.pending.Content = &content
	a.markDirty()
	a.contentTimer = a.rearm(a.contentTimer, a.settings.ContentDelay)
	return nil
}

// Commit writes pending edits now. If a commit is already in flight the
// new one follows it.
func (a *Autosave) Commit() error {
	if a.docID == "" {
		return domain.ErrNoOpenPage
	}
	a.stopTimers()
	if a.pending.IsEmpty() {
		return nil
	}
	if a.inflight != nil {
		a.commitAfter = true
		return nil
	}
	return a.issue()
}

// Discard drops uncommitted edits. An in-flight commit still completes
// but its outcome no longer affects the state.
func (a *Autosave) Discard() {
	if a.docID == "" {
		return
	}
	autosaveLog.Debug("discarding edits to %s", a.docID)
	a.reset(a.docID)
}

// Teardown closes page id without committing, if it is open.
func (a *Autosave) Teardown(id string) {
	if id == "" || id != a.docID {
		return
	}
	a.reset("")
}

// Repoint follows a provisional page to its durable id.
func (a *Autosave) Repoint(oldID, newID string) {
	if a.docID == oldID {
		a.docID = newID
	}
}

// SetSettings changes autosave behaviour. Disabling stops armed timers
// and leaves edits for a manual save.
func (a *Autosave) SetSettings(settings domain.AutosaveSettings) {
	a.settings = settings
	if !settings.Enabled {
		a.stopTimers()
		return
	}
	if a.state == domain.SaveDirty && !a.Armed() && a.lastErr == nil {
		a.contentTimer = a.rearm(a.contentTimer, a.settings.ContentDelay)
	}
}

// handOff commits the pending edits of a page being closed. The write
// follows any in-flight commit so the two never race.
func (a *Autosave) handOff() {
	id, fields, writer := a.docID, a.pending, a.writer
	write := func() {
		target, ok := writer.DurableID(id)
		if !ok {
			target = id
		}
		if _, err := writer.UpdatePage(target, fields); err != nil {
			autosaveLog.Debug("commit %s on close: %v", target, err)
		}
	}
	a.stopTimers()
	if a.inflight != nil {
		a.inflight.OnSettled(func(*Mutation) { write() })
		return
	}
	autosaveLog.Debug("committing %s on close", id)
	write()
}

func (a *Autosave) reset(id string) {
	a.stopTimers()
	a.docID = id
	a.epoch++
	a.pending = domain.PageFields{}
	a.editSeq = 0
	a.issuedSeq = 0
	a.lastErr = nil
	a.inflight = nil
	a.commitAfter = false
	a.setState(domain.SaveClean)
}

func (a *Autosave) markDirty() {
	a.editSeq++
	a.setState(domain.SaveDirty)
}

// rearm restarts a debounce timer. Returns nil when autosave is off.
func (a *Autosave) rearm(t driven.Timer, delay time.Duration) driven.Timer {
	if t != nil {
		t.Stop()
	}
	if !a.settings.Enabled {
		return nil
	}
	epoch := a.epoch
	var timer driven.Timer
	timer = a.loop.AfterFunc(delay, func() {
		if epoch != a.epoch {
			return
		}
		if a.titleTimer == timer {
			a.titleTimer = nil
		}
		if a.contentTimer == timer {
			a.contentTimer = nil
		}
		if err := a.Commit(); err != nil {
			autosaveLog.Debug("commit %s: %v", a.docID, err)
		}
	})
	return timer
}

func (a *Autosave) stopTimers() {
	if a.titleTimer != nil {
		a.titleTimer.Stop()
		a.titleTimer = nil
	}
	if a.contentTimer != nil {
		a.contentTimer.Stop()
		a.contentTimer = nil
	}
}

func (a *Autosave) issue() error {
	fields := a.pending
	a.pending = domain.PageFields{}
	a.issuedSeq = a.editSeq
	a.commitAfter = false
	epoch := a.epoch

	autosaveLog.Debug("committing %s", a.docID)
	a.setState(domain.SaveSaving)

	m, err := a.writer.UpdatePage(a.docID, fields)
	if err != nil {
		a.pending = fields.Merge(a.pending)
		a.lastErr = err
		a.setState(domain.SaveDirty)
		return err
	}

	a.inflight = m
	m.OnSettled(func(m *Mutation) {
		a.settled(epoch, fields, m)
	})
	return nil
}

func (a *Autosave) settled(epoch uint64, sent domain.PageFields, m *Mutation) {
	if epoch != a.epoch {
		return
	}
	a.inflight = nil

	if err := m.Err(); err != nil {
		// Newer edits win over the failed snapshot. No retry until the
		// next edit or a manual save.
		a.pending = sent.Merge(a.pending)
		a.lastErr = err
		a.commitAfter = false
		a.setState(domain.SaveDirty)
		return
	}
	a.lastErr = nil

	if a.editSeq == a.issuedSeq && a.pending.IsEmpty() {
		a.setState(domain.SaveClean)
		return
	}

	a.setState(domain.SaveDirty)
	if a.commitAfter {
		if err := a.issue(); err != nil {
			autosaveLog.Debug("follow-up commit %s: %v", a.docID, err)
		}
		return
	}
	if !a.Armed() {
		a.contentTimer = a.rearm(a.contentTimer, a.settings.ContentDelay)
	}
}

func (a *Autosave) setState(state domain.SaveState) {
	if a.state == state {
		return
	}
	a.state = state
	if a.onChange != nil {
		a.onChange(state)
	}
}
