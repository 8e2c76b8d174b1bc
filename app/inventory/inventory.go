// Package inventory holds the application context of the shop: the store handle
// together with the transient form and selection state shown to the user.
// All operations are serialized, so requests coming from the web server
// never interleave with each other.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/shopinv/app/store"
)

// Store defines persistence operations used by the application
type Store interface {
	Insert(ctx context.Context, name string, price float64, quantity int64) (int64, error)
	List(ctx context.Context) ([]store.Item, error)
	Get(ctx context.Context, id int64) (store.Item, error)
	Update(ctx context.Context, id int64, price float64, quantity int64) error
	Delete(ctx context.Context, id int64) error
}

// NoticeKind separates success messages from errors
type NoticeKind string

// notice kinds
const (
	NoticeNone  NoticeKind = ""
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
)

// Notice is a message the user has to acknowledge
type Notice struct {
	Kind NoticeKind
	Text string
}

// State is a snapshot of everything the page shows besides the item list
type State struct {
	Form       Form
	Selected   int64 // 0 if nothing selected
	Notice     Notice
	Confirming bool   // removal of the selected item waits for confirmation
	Prompt     string // confirmation question, set when Confirming
}

// App is the application context
type App struct {
	store Store

	mu         sync.Mutex
	form       Form
	selected   int64
	notice     Notice
	confirming bool
}

// New makes App for the given store
func New(st Store) *App {
	return &App{store: st}
}

// State returns a copy of the current form, selection and notice
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	res := State{Form: a.form, Selected: a.selected, Notice: a.notice, Confirming: a.confirming}
	if a.confirming {
		res.Prompt = msgConfirmationAsked
	}
	return res
}

// Items re-reads all items from the store
func (a *App) Items(ctx context.Context) ([]store.Item, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	items, err := a.store.List(ctx)
	if err != nil {
		log.Printf("[WARN] can't list items, %v", err)
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// Add validates the form and inserts a new item. On any failure the form is kept as entered.
func (a *App) Add(ctx context.Context, f Form) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.form = f
	a.confirming = false

	e, err := parseEntry(f)
	if err != nil {
		return 0, a.reject(err)
	}

	id, err := a.store.Insert(ctx, e.Name, e.Price, e.Quantity)
	if err != nil {
		return 0, a.storageFailure("add item", err)
	}
	log.Printf("[INFO] item %d added, name=%q, price=%v, quantity=%d", id, e.Name, e.Price, e.Quantity)
	a.succeed(msgItemAdded)
	return id, nil
}

// Update changes price and quantity of the selected item, the name field is ignored
func (a *App) Update(ctx context.Context, f Form) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.form = f
	a.confirming = false

	if a.selected == 0 {
		return a.reject(&ValidationError{Msg: msgSelectForUpdate})
	}
	s, err := parseStock(f)
	if err != nil {
		return a.reject(err)
	}

	if err := a.store.Update(ctx, a.selected, s.Price, s.Quantity); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.selected = 0
			return a.reject(&ValidationError{Msg: msgItemNotFound})
		}
		return a.storageFailure("update item", err)
	}
	log.Printf("[INFO] item %d updated, price=%v, quantity=%d", a.selected, s.Price, s.Quantity)
	a.succeed(msgItemUpdated)
	return nil
}

// Select loads the item into the form for editing
func (a *App) Select(ctx context.Context, id int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.confirming = false

	item, err := a.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return a.reject(&ValidationError{Msg: msgItemNotFound})
		}
		return a.storageFailure("select item", err)
	}
	a.selected = item.ID
	a.form = Form{
		Name:     item.Name,
		Price:    formatPrice(item.Price),
		Quantity: strconv.FormatInt(item.Quantity, 10),
	}
	return nil
}

// RequestRemove asks for confirmation before removing the selected item
func (a *App) RequestRemove() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.selected == 0 {
		return a.reject(&ValidationError{Msg: msgSelectForRemoval})
	}
	a.confirming = true
	return nil
}

// Remove deletes the selected item if confirmed, without confirmation nothing is changed
func (a *App) Remove(ctx context.Context, confirmed bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.confirming = false

	if a.selected == 0 {
		return a.reject(&ValidationError{Msg: msgSelectForRemoval})
	}
	if !confirmed {
		log.Printf("[DEBUG] removal of item %d canceled", a.selected)
		return nil
	}

	if err := a.store.Delete(ctx, a.selected); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.selected = 0
			return a.reject(&ValidationError{Msg: msgItemNotFound})
		}
		return a.storageFailure("remove item", err)
	}
	log.Printf("[INFO] item %d removed", a.selected)
	a.succeed(msgItemRemoved)
	return nil
}

// Clear empties the form and drops the selection
func (a *App) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clear()
}

// DismissNotice acknowledges the current notice
func (a *App) DismissNotice() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notice = Notice{}
}

func (a *App) clear() {
	a.form = Form{}
	a.selected = 0
	a.confirming = false
}

func (a *App) succeed(msg string) {
	a.clear()
	a.notice = Notice{Kind: NoticeInfo, Text: msg}
}

func (a *App) reject(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		a.notice = Notice{Kind: NoticeError, Text: ve.Msg}
		return err
	}
	return a.storageFailure("validate input", err)
}

func (a *App) storageFailure(op string, err error) error {
	log.Printf("[WARN] failed to %s, %v", op, err)
	a.notice = Notice{Kind: NoticeError, Text: msgStorageFailure}
	return fmt.Errorf("failed to %s: %w", op, err)
}
