package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"DividendLedger/internal/model"
	"DividendLedger/internal/store"
)

// ErrEmptyPortfolio rejects snapshotting a ledger with no holdings.
var ErrEmptyPortfolio = errors.New("cannot snapshot an empty portfolio")

// Archive holds up to MaxSnapshots named point-in-time copies of the valuated
// portfolio, most-recent-first. A snapshot's figures are baked in at creation
// and never recomputed; only the name may change afterwards.
type Archive struct {
	mu   sync.Mutex
	db   *store.Dual
	list []model.Snapshot

	now func() time.Time
}

// Open loads the persisted snapshot list.
func Open(db *store.Dual) (*Archive, error) {
	a := &Archive{db: db, now: time.Now}
	data, ok, err := db.Get(store.PartStatus, store.KeySnapshots)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	if ok {
		if err := json.Unmarshal(data, &a.list); err != nil {
			return nil, fmt.Errorf("parse snapshots: %w", err)
		}
	}
	return a, nil
}

// List returns the snapshots, most recent first.
func (a *Archive) List() []model.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Snapshot, len(a.list))
	copy(out, a.list)
	return out
}

// Create stores a new snapshot from already-frozen valuation records. An empty
// name gets a creation-time default. The list is capped: inserting beyond the
// limit evicts the oldest entry.
func (a *Archive) Create(name string, frozen []model.SnapshotHolding) (model.Snapshot, error) {
	if len(frozen) == 0 {
		return model.Snapshot{}, ErrEmptyPortfolio
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	createdAt := a.now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Portfolio (%s)", createdAt.Format("2006-01-02 15:04:05"))
	}

	// Own a copy so later caller-side mutation cannot touch the stored record.
	held := make([]model.SnapshotHolding, len(frozen))
	copy(held, frozen)

	snap := model.Snapshot{
		ID:        a.freshID(createdAt),
		Name:      name,
		CreatedAt: createdAt,
		Holdings:  held,
	}

	a.list = append([]model.Snapshot{snap}, a.list...)
	if len(a.list) > model.MaxSnapshots {
		a.list = a.list[:model.MaxSnapshots]
	}
	if err := a.save(); err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

// freshID derives a unique id from the creation time. Caller must hold a.mu.
func (a *Archive) freshID(createdAt time.Time) string {
	ms := createdAt.UnixMilli()
	for {
		id := strconv.FormatInt(ms, 10)
		taken := false
		for _, s := range a.list {
			if s.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
		ms++
	}
}

// Rename changes a snapshot's name. An unknown id is a no-op.
func (a *Archive) Rename(id, newName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.list {
		if a.list[i].ID == id {
			a.list[i].Name = newName
			return a.save()
		}
	}
	return nil
}

// Delete removes a snapshot. An unknown id is a no-op.
func (a *Archive) Delete(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.list {
		if a.list[i].ID == id {
			a.list = append(a.list[:i], a.list[i+1:]...)
			return a.save()
		}
	}
	return nil
}

// save persists the list and waits for the acknowledgment; snapshot operations
// are explicit user actions, so their durability is confirmed in-line.
func (a *Archive) save() error {
	data, err := json.Marshal(a.list)
	if err != nil {
		return err
	}
	return a.db.PutSync(store.PartStatus, store.KeySnapshots, data)
}
