package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/mirae/internal/core/domain"
	"github.com/custodia-labs/mirae/internal/core/ports/driven"
	"github.com/custodia-labs/mirae/internal/logger"
)

var mutationLog = logger.Scope("mutation")

// navigationTarget is the part of the navigator the coordinator moves
// when creates open a page and deletes close one.
type navigationTarget interface {
	Phase() domain.SessionPhase
	Show(phase domain.SessionPhase)
	Repoint(oldID, newID string)
}

// pageCall is a remote page write.
type pageCall func(ctx context.Context, id, ownerID string, fields domain.PageFields) (*domain.Page, error)

// pendingCreate tracks a create whose remote call has not resolved.
// Writes that reference its provisional id wait on it.
type pendingCreate struct {
	waiters []func()
}

func (p *pendingCreate) finish() {
	waiters := p.waiters
	p.waiters = nil
	for _, fn := range waiters {
		fn()
	}
}

// MutationCoordinator applies entity writes to the cache optimistically,
// issues the remote call, and reconciles the cache with the outcome.
//
// Failed creates revert. Failed updates and deletes keep the local change
// and raise an alert.
type MutationCoordinator struct {
	ctx   context.Context
	store driven.EntityStore
	cache *EntityCache
	loop  driven.EventLoop
	nav   navigationTarget

	creates        map[string]*pendingCreate
	resolved       map[string]string
	pendingDeletes map[string]struct{}

	onAlert    func(error)
	onRepoint  []func(oldID, newID string)
	onTeardown []func(id string)
}

// NewMutationCoordinator creates a coordinator. ctx scopes every remote call.
func NewMutationCoordinator(
	ctx context.Context,
	store driven.EntityStore,
	cache *EntityCache,
	loop driven.EventLoop,
	nav navigationTarget,
) *MutationCoordinator {
	return &MutationCoordinator{
		ctx:            ctx,
		store:          store,
		cache:          cache,
		loop:           loop,
		nav:            nav,
		creates:        make(map[string]*pendingCreate),
		resolved:       make(map[string]string),
		pendingDeletes: make(map[string]struct{}),
	}
}

// OnAlert registers the sink for user-visible mutation failures.
func (c *MutationCoordinator) OnAlert(fn func(error)) {
	c.onAlert = fn
}

// OnRepoint registers fn to run when a provisional id becomes durable.
func (c *MutationCoordinator) OnRepoint(fn func(oldID, newID string)) {
	c.onRepoint = append(c.onRepoint, fn)
}

// OnTeardown registers fn to run before a page is removed locally.
func (c *MutationCoordinator) OnTeardown(fn func(id string)) {
	c.onTeardown = append(c.onTeardown, fn)
}

// Reset forgets in-flight bookkeeping when the owner changes.
// Responses still in flight are discarded by generation.
func (c *MutationCoordinator) Reset() {
	c.creates = make(map[string]*pendingCreate)
	c.resolved = make(map[string]string)
	c.pendingDeletes = make(map[string]struct{})
}

// IsPendingDelete returns true while a remote delete of id is in flight.
func (c *MutationCoordinator) IsPendingDelete(id string) bool {
	_, ok := c.pendingDeletes[id]
	return ok
}

// DurableID returns the durable id a provisional id resolved to.
func (c *MutationCoordinator) DurableID(id string) (string, bool) {
	if !domain.IsProvisional(id) {
		return id, true
	}
	durable, ok := c.resolved[id]
	return durable, ok
}

// CreatePage inserts a provisional page at the front of the cache, opens
// it, and creates it remotely.
func (c *MutationCoordinator) CreatePage(input domain.NewPageInput) (domain.Page, *Mutation, error) {
	owner := c.cache.OwnerID()
	if owner == "" {
		return domain.Page{}, nil, domain.ErrNoOwner
	}
	if input.FolderID != nil && *input.FolderID == "" {
		input.FolderID = nil
	}
	if err := c.checkFolder(input.FolderID); err != nil {
		return domain.Page{}, nil, err
	}

	now := c.loop.Now()
	page := domain.Page{
		ID:        newProvisionalID(),
		OwnerID:   owner,
		Title:     input.Title,
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.FolderID != nil {
		page.FolderID = domain.Ptr(*input.FolderID)
	}

	previous := c.nav.Phase()
	c.cache.UpsertPage(page)
	c.nav.Show(domain.Viewing(page.ID))

	m := newMutation(domain.OpCreate, domain.KindPage, page.ID)
	pc := &pendingCreate{}
	c.creates[page.ID] = pc
	gen := c.cache.Generation()
	mutationLog.Debug("create page %s", page.ID)

	folder := ""
	if page.FolderID != nil {
		folder = *page.FolderID
	}
	c.awaitFolder(folder, func(string) {
		local, ok := c.cache.FindPage(page.ID)
		if !ok {
			// Deleted before the remote call was issued.
			delete(c.creates, page.ID)
			m.settle(domain.MutationReverted, nil)
			pc.finish()
			return
		}
		// The cached page holds the folder as it is now. A folder deleted
		// or reverted meanwhile has already been cleared from it.
		sent := domain.NewPageInput{Title: local.Title, Content: local.Content}
		if local.FolderID != nil {
			if durable, ok := c.DurableID(*local.FolderID); ok {
				sent.FolderID = domain.Ptr(durable)
			}
		}
		c.loop.Go(func() {
			created, err := c.store.CreatePage(c.ctx, owner, sent)
			c.loop.Post(func() {
				c.finishCreatePage(page.ID, previous, gen, pc, m, created, err)
			})
		})
	})

	return page, m, nil
}

func (c *MutationCoordinator) finishCreatePage(
	provisionalID string,
	previous domain.SessionPhase,
	gen uint64,
	pc *pendingCreate,
	m *Mutation,
	created *domain.Page,
	err error,
) {
	if gen != c.cache.Generation() {
		mutationLog.Debug("discarding stale create response for %s", provisionalID)
		m.settle(domain.MutationReverted, domain.ErrStaleResponse)
		pc.finish()
		return
	}
	if err != nil {
		c.failCreatePage(provisionalID, previous, pc, m, err)
		return
	}
	delete(c.creates, provisionalID)

	local, ok := c.cache.FindPage(provisionalID)
	if !ok {
		mutationLog.Debug("page %s deleted while creating, removing %s", provisionalID, created.ID)
		c.deleteOrphan(domain.KindPage, created.ID, created.OwnerID)
		m.id = created.ID
		m.settle(domain.MutationCommitted, nil)
		pc.finish()
		return
	}

	durable := local
	durable.ID = created.ID
	durable.OwnerID = created.OwnerID
	durable.CreatedAt = created.CreatedAt
	durable.UpdatedAt = created.UpdatedAt

	c.resolved[provisionalID] = created.ID
	c.cache.ReplacePageID(provisionalID, durable)
	for _, fn := range c.onRepoint {
		fn(provisionalID, created.ID)
	}
	c.nav.Repoint(provisionalID, created.ID)

	mutationLog.Debug("page %s created as %s", provisionalID, created.ID)
	m.id = created.ID
	m.settle(domain.MutationCommitted, nil)
	pc.finish()
}

func (c *MutationCoordinator) failCreatePage(
	provisionalID string,
	previous domain.SessionPhase,
	pc *pendingCreate,
	m *Mutation,
	cause error,
) {
	delete(c.creates, provisionalID)
	err := fmt.Errorf("%w: %w", domain.ErrCreateFailed, cause)

	if _, ok := c.cache.FindPage(provisionalID); ok {
		c.teardown(provisionalID)
		c.cache.RemovePage(provisionalID)
		if cur, ok := c.nav.Phase().CurrentPageID(); ok && cur == provisionalID {
			c.nav.Show(c.restorePhase(previous))
		}
	}

	m.settle(domain.MutationReverted, err)
	pc.finish()
	c.alert(err)
}

// restorePhase returns previous if it can still be shown, else Home.
func (c *MutationCoordinator) restorePhase(previous domain.SessionPhase) domain.SessionPhase {
	if id, ok := previous.CurrentPageID(); ok {
		if _, found := c.cache.FindPage(id); found {
			return previous
		}
	}
	return domain.Home()
}

// UpdatePage applies fields to a cached page and writes them remotely.
// Writes to a provisional page wait for its create.
func (c *MutationCoordinator) UpdatePage(id string, fields domain.PageFields) (*Mutation, error) {
	return c.writePage(id, fields, c.store.UpdatePage)
}

// MovePage files a page under folderID, or unfiles it when folderID is "".
func (c *MutationCoordinator) MovePage(id, folderID string) (*Mutation, error) {
	fields := domain.PageFields{FolderID: domain.Ptr(folderID)}
	return c.writePage(id, fields, func(ctx context.Context, id, ownerID string, f domain.PageFields) (*domain.Page, error) {
		var folder *string
		if *f.FolderID != "" {
			folder = f.FolderID
		}
		return c.store.MovePage(ctx, id, ownerID, folder)
	})
}

// SetFavorite marks or unmarks a page as a favourite.
func (c *MutationCoordinator) SetFavorite(id string, favorite bool) (*Mutation, error) {
	fields := domain.PageFields{IsFavorite: domain.Ptr(favorite)}
	return c.writePage(id, fields, func(ctx context.Context, id, ownerID string, f domain.PageFields) (*domain.Page, error) {
		return c.store.SetFavorite(ctx, id, ownerID, *f.IsFavorite)
	})
}

func (c *MutationCoordinator) writePage(id string, fields domain.PageFields, call pageCall) (*Mutation, error) {
	page, ok := c.cache.FindPage(id)
	if !ok {
		return nil, fmt.Errorf("page %s: %w", id, domain.ErrNotFound)
	}
	if fields.IsEmpty() {
		return settledMutation(domain.OpUpdate, domain.KindPage, id), nil
	}
	if fields.FolderID != nil && *fields.FolderID != "" {
		if err := c.checkFolder(fields.FolderID); err != nil {
			return nil, err
		}
	}

	updated := fields.Apply(page)
	updated.UpdatedAt = c.loop.Now()
	c.cache.UpsertPage(updated)

	m := newMutation(domain.OpUpdate, domain.KindPage, id)
	owner := c.cache.OwnerID()
	gen := c.cache.Generation()

	folder := ""
	if fields.FolderID != nil {
		folder = *fields.FolderID
	}
	c.awaitFolder(folder, func(folder string) {
		c.awaitDurable([]string{id}, func(ids []string, err error) {
			c.issuePageWrite(id, ids, err, folder, fields, owner, gen, m, call)
		})
	})

	return m, nil
}

func (c *MutationCoordinator) issuePageWrite(
	id string,
	ids []string,
	err error,
	folder string,
	fields domain.PageFields,
	owner string,
	gen uint64,
	m *Mutation,
	call pageCall,
) {
	if err != nil {
		if _, ok := c.cache.FindPage(id); !ok {
			// The page went with its failed or abandoned create.
			m.settle(domain.MutationCommitted, nil)
			return
		}
		c.warnUpdate(m, id, err)
		return
	}
	durableID := ids[0]
	if fields.FolderID != nil {
		fields.FolderID = domain.Ptr(folder)
	}
	if _, ok := c.cache.FindPage(durableID); !ok || c.IsPendingDelete(durableID) {
		m.settle(domain.MutationCommitted, nil)
		return
	}
	m.id = durableID
	mutationLog.Debug("update page %s", durableID)
	c.loop.Go(func() {
		echoed, err := call(c.ctx, durableID, owner, fields)
		c.loop.Post(func() {
			c.finishPageWrite(durableID, gen, fields, m, echoed, err)
		})
	})
}

func (c *MutationCoordinator) finishPageWrite(
	id string,
	gen uint64,
	sent domain.PageFields,
	m *Mutation,
	echoed *domain.Page,
	err error,
) {
	if gen != c.cache.Generation() {
		mutationLog.Debug("discarding stale update response for %s", id)
		m.settle(domain.MutationCommitted, nil)
		return
	}
	if err != nil {
		c.warnUpdate(m, id, err)
		return
	}

	local, ok := c.cache.FindPage(id)
	if !ok || c.IsPendingDelete(id) {
		mutationLog.Debug("discarding update response for removed page %s", id)
		m.settle(domain.MutationCommitted, nil)
		return
	}
	c.cache.UpsertPage(mergeEcho(local, sent, *echoed))
	m.settle(domain.MutationCommitted, nil)
}

func (c *MutationCoordinator) warnUpdate(m *Mutation, id string, cause error) {
	err := fmt.Errorf("%w: page %s: %w", domain.ErrUpdateFailed, id, cause)
	m.settle(domain.MutationCommittedWithWarning, err)
	c.alert(err)
}

// mergeEcho reconciles a write response with the cached page. A field the
// user changed again after the write was sent keeps its local value.
func mergeEcho(local domain.Page, sent domain.PageFields, echoed domain.Page) domain.Page {
	out := local.Clone()
	if sent.Title != nil && local.Title == *sent.Title {
		out.Title = echoed.Title
	}
	if sent.Content != nil && local.Content == *sent.Content {
		out.Content = echoed.Content
	}
	if sent.FolderID != nil && sameFolder(local.FolderID, *sent.FolderID) {
		out.FolderID = echoed.Clone().FolderID
	}
	if sent.IsFavorite != nil && local.IsFavorite == *sent.IsFavorite {
		out.IsFavorite = echoed.IsFavorite
	}
	out.UpdatedAt = echoed.UpdatedAt
	return out
}

func sameFolder(current *string, folderID string) bool {
	if folderID == "" {
		return current == nil
	}
	return current != nil && *current == folderID
}

// DeletePage removes a page locally and remotely. If it was open, the
// first remaining page opens, or Home when none remain.
func (c *MutationCoordinator) DeletePage(id string) (*Mutation, error) {
	return c.deletePage(id, true)
}

// DiscardDraft deletes a blank page without moving navigation.
func (c *MutationCoordinator) DiscardDraft(id string) (*Mutation, error) {
	return c.deletePage(id, false)
}

func (c *MutationCoordinator) deletePage(id string, advance bool) (*Mutation, error) {
	if _, ok := c.cache.FindPage(id); !ok {
		return nil, fmt.Errorf("page %s: %w", id, domain.ErrNotFound)
	}
	before := c.cache.Pages()

	c.teardown(id)
	c.cache.RemovePage(id)
	if cur, ok := c.nav.Phase().CurrentPageID(); ok && cur == id && advance {
		c.nav.Show(nextAfterDelete(before, id))
	}

	m := newMutation(domain.OpDelete, domain.KindPage, id)
	if domain.IsProvisional(id) {
		// The pending create removes the remote page once it resolves.
		mutationLog.Debug("dropped provisional page %s", id)
		m.settle(domain.MutationCommitted, nil)
		return m, nil
	}

	c.issueDelete(domain.KindPage, id, m)
	return m, nil
}

func nextAfterDelete(before []domain.Page, deletedID string) domain.SessionPhase {
	for _, p := range before {
		if p.ID != deletedID {
			return domain.Viewing(p.ID)
		}
	}
	return domain.Home()
}

func (c *MutationCoordinator) issueDelete(kind domain.EntityKind, id string, m *Mutation) {
	owner := c.cache.OwnerID()
	gen := c.cache.Generation()
	c.pendingDeletes[id] = struct{}{}
	mutationLog.Debug("delete %s %s", kind, id)

	c.loop.Go(func() {
		var err error
		if kind == domain.KindFolder {
			err = c.store.DeleteFolder(c.ctx, id, owner)
		} else {
			err = c.store.DeletePage(c.ctx, id, owner)
		}
		c.loop.Post(func() { c.finishDelete(kind, id, gen, m, err) })
	})
}

func (c *MutationCoordinator) finishDelete(kind domain.EntityKind, id string, gen uint64, m *Mutation, err error) {
	if gen != c.cache.Generation() {
		m.settle(domain.MutationCommitted, nil)
		return
	}
	delete(c.pendingDeletes, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		wrapped := fmt.Errorf("%w: %s %s: %w", domain.ErrDeleteFailed, kind, id, err)
		m.settle(domain.MutationCommittedWithWarning, wrapped)
		c.alert(wrapped)
		return
	}
	m.settle(domain.MutationCommitted, nil)
}

// deleteOrphan removes an entity whose create resolved after the user
// deleted it locally. Failures are logged only.
func (c *MutationCoordinator) deleteOrphan(kind domain.EntityKind, id, ownerID string) {
	c.loop.Go(func() {
		var err error
		if kind == domain.KindFolder {
			err = c.store.DeleteFolder(c.ctx, id, ownerID)
		} else {
			err = c.store.DeletePage(c.ctx, id, ownerID)
		}
		if err != nil {
			mutationLog.Warn("failed to remove orphaned %s %s: %v", kind, id, err)
		}
	})
}

// CreateFolder appends a provisional folder and creates it remotely.
func (c *MutationCoordinator) CreateFolder(name string) (domain.Folder, *Mutation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Folder{}, nil, fmt.Errorf("folder name is empty: %w", domain.ErrInvalidInput)
	}
	owner := c.cache.OwnerID()
	if owner == "" {
		return domain.Folder{}, nil, domain.ErrNoOwner
	}

	now := c.loop.Now()
	folder := domain.Folder{
		ID:        newProvisionalID(),
		OwnerID:   owner,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.cache.UpsertFolder(folder)

	m := newMutation(domain.OpCreate, domain.KindFolder, folder.ID)
	pc := &pendingCreate{}
	c.creates[folder.ID] = pc
	gen := c.cache.Generation()
	mutationLog.Debug("create folder %s", folder.ID)

	c.loop.Go(func() {
		created, err := c.store.CreateFolder(c.ctx, owner, name)
		c.loop.Post(func() {
			c.finishCreateFolder(folder.ID, gen, pc, m, created, err)
		})
	})

	return folder, m, nil
}

func (c *MutationCoordinator) finishCreateFolder(
	provisionalID string,
	gen uint64,
	pc *pendingCreate,
	m *Mutation,
	created *domain.Folder,
	err error,
) {
	if gen != c.cache.Generation() {
		m.settle(domain.MutationReverted, domain.ErrStaleResponse)
		pc.finish()
		return
	}
	delete(c.creates, provisionalID)

	if err != nil {
		wrapped := fmt.Errorf("%w: %w", domain.ErrCreateFailed, err)
		c.cache.RemoveFolder(provisionalID)
		m.settle(domain.MutationReverted, wrapped)
		pc.finish()
		c.alert(wrapped)
		return
	}

	local, ok := c.cache.FindFolder(provisionalID)
	if !ok {
		c.deleteOrphan(domain.KindFolder, created.ID, created.OwnerID)
		m.id = created.ID
		m.settle(domain.MutationCommitted, nil)
		pc.finish()
		return
	}

	durable := local
	durable.ID = created.ID
	durable.OwnerID = created.OwnerID
	durable.CreatedAt = created.CreatedAt
	durable.UpdatedAt = created.UpdatedAt

	c.resolved[provisionalID] = created.ID
	c.cache.ReplaceFolderID(provisionalID, durable)
	m.id = created.ID
	m.settle(domain.MutationCommitted, nil)
	pc.finish()
}

// RenameFolder renames a folder locally and remotely.
func (c *MutationCoordinator) RenameFolder(id, name string) (*Mutation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("folder name is empty: %w", domain.ErrInvalidInput)
	}
	folder, ok := c.cache.FindFolder(id)
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	if folder.Name == name {
		return settledMutation(domain.OpUpdate, domain.KindFolder, id), nil
	}

	folder.Name = name
	folder.UpdatedAt = c.loop.Now()
	c.cache.UpsertFolder(folder)

	m := newMutation(domain.OpUpdate, domain.KindFolder, id)
	owner := c.cache.OwnerID()
	gen := c.cache.Generation()

	c.awaitDurable([]string{id}, func(ids []string, err error) {
		if err != nil {
			if _, ok := c.cache.FindFolder(id); !ok {
				m.settle(domain.MutationCommitted, nil)
				return
			}
			c.warnFolderUpdate(m, id, err)
			return
		}
		durableID := ids[0]
		m.id = durableID
		c.loop.Go(func() {
			echoed, err := c.store.UpdateFolder(c.ctx, durableID, owner, domain.FolderFields{Name: &name})
			c.loop.Post(func() {
				c.finishFolderWrite(durableID, gen, name, m, echoed, err)
			})
		})
	})

	return m, nil
}

func (c *MutationCoordinator) finishFolderWrite(
	id string,
	gen uint64,
	sent string,
	m *Mutation,
	echoed *domain.Folder,
	err error,
) {
	if gen != c.cache.Generation() {
		m.settle(domain.MutationCommitted, nil)
		return
	}
	if err != nil {
		c.warnFolderUpdate(m, id, err)
		return
	}
	local, ok := c.cache.FindFolder(id)
	if !ok || c.IsPendingDelete(id) {
		m.settle(domain.MutationCommitted, nil)
		return
	}
	if local.Name == sent {
		local.Name = echoed.Name
	}
	local.UpdatedAt = echoed.UpdatedAt
	c.cache.UpsertFolder(local)
	m.settle(domain.MutationCommitted, nil)
}

func (c *MutationCoordinator) warnFolderUpdate(m *Mutation, id string, cause error) {
	err := fmt.Errorf("%w: folder %s: %w", domain.ErrUpdateFailed, id, cause)
	m.settle(domain.MutationCommittedWithWarning, err)
	c.alert(err)
}

// DeleteFolder removes a folder and unfiles its pages, locally and remotely.
func (c *MutationCoordinator) DeleteFolder(id string) (*Mutation, error) {
	unfiled, ok := c.cache.RemoveFolder(id)
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	mutationLog.Debug("folder %s removed, %d pages unfiled", id, len(unfiled))

	m := newMutation(domain.OpDelete, domain.KindFolder, id)
	if domain.IsProvisional(id) {
		m.settle(domain.MutationCommitted, nil)
		return m, nil
	}
	c.issueDelete(domain.KindFolder, id, m)
	return m, nil
}

// awaitDurable calls fn with ids rewritten to durable ids once every
// provisional id in ids has resolved. Empty ids pass through.
func (c *MutationCoordinator) awaitDurable(ids []string, fn func(ids []string, err error)) {
	for i, id := range ids {
		if !domain.IsProvisional(id) {
			continue
		}
		if durable, ok := c.resolved[id]; ok {
			ids[i] = durable
			continue
		}
		pc, ok := c.creates[id]
		if !ok {
			fn(nil, fmt.Errorf("%s was never created: %w", id, domain.ErrNotFound))
			return
		}
		pc.waiters = append(pc.waiters, func() { c.awaitDurable(ids, fn) })
		return
	}
	fn(ids, nil)
}

// awaitFolder calls fn with the durable id of a folder once its create has
// resolved. A folder that was deleted or whose create failed yields "",
// leaving the page unfiled.
func (c *MutationCoordinator) awaitFolder(id string, fn func(folderID string)) {
	if !domain.IsProvisional(id) {
		fn(id)
		return
	}
	if durable, ok := c.resolved[id]; ok {
		fn(durable)
		return
	}
	if pc, ok := c.creates[id]; ok {
		pc.waiters = append(pc.waiters, func() { c.awaitFolder(id, fn) })
		return
	}
	mutationLog.Debug("folder %s is gone, writing page unfiled", id)
	fn("")
}

func (c *MutationCoordinator) checkFolder(folderID *string) error {
	if folderID == nil {
		return nil
	}
	if _, ok := c.cache.FindFolder(*folderID); !ok {
		return fmt.Errorf("folder %s: %w", *folderID, domain.ErrNotFound)
	}
	return nil
}

func (c *MutationCoordinator) teardown(id string) {
	for _, fn := range c.onTeardown {
		fn(id)
	}
}

func (c *MutationCoordinator) alert(err error) {
	mutationLog.Debug("%v", err)
	if c.onAlert != nil {
		c.onAlert(err)
	}
}
