package store

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrClosed is returned for operations issued after Close.
var ErrClosed = errors.New("store closed")

type job struct {
	key    string
	value  []byte
	delete bool
	done   chan error
}

// Dual duplicates every write across a transactional primary tier and a flat
// fallback tier. Writes are asynchronous and serialized per partition; the returned
// channel acknowledges completion. The fallback is written unconditionally so no
// acknowledged write is ever lost, even if the primary is wiped mid-session. Reads
// prefer the primary and fall back to the flat copy on a miss or a hard failure.
//
// If the primary write fails structurally, Dual self-heals: it discards the primary
// database entirely, recreates it with the current schema and retries the write once.
type Dual struct {
	primary  Transactional
	fallback Tier

	mu     sync.Mutex
	queues map[string]chan job
	wg     sync.WaitGroup
	closed bool
}

// NewDual builds a dual-tier store over the given tiers.
func NewDual(primary Transactional, fallback Tier) *Dual {
	return &Dual{
		primary:  primary,
		fallback: fallback,
		queues:   map[string]chan job{},
	}
}

// Put enqueues a write and returns a channel that receives exactly one result.
// A nil result means at least one tier holds the value durably.
func (d *Dual) Put(partition, key string, value []byte) <-chan error {
	return d.enqueue(partition, job{key: key, value: value, done: make(chan error, 1)})
}

// Delete enqueues a removal from both tiers, serialized with pending writes.
func (d *Dual) Delete(partition, key string) <-chan error {
	return d.enqueue(partition, job{key: key, delete: true, done: make(chan error, 1)})
}

// PutSync is Put followed by a wait for the acknowledgment.
func (d *Dual) PutSync(partition, key string, value []byte) error {
	return <-d.Put(partition, key, value)
}

// DeleteSync is Delete followed by a wait for the acknowledgment.
func (d *Dual) DeleteSync(partition, key string) error {
	return <-d.Delete(partition, key)
}

func (d *Dual) enqueue(partition string, j job) <-chan error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		j.done <- ErrClosed
		return j.done
	}
	q, ok := d.queues[partition]
	if !ok {
		q = make(chan job, 16)
		d.queues[partition] = q
		d.wg.Add(1)
		go d.drain(partition, q)
	}
	// The send stays under the mutex so Close cannot close the queue between
	// the closed check and the send. Drainers never take the mutex, so a full
	// queue empties out while we block here.
	q <- j
	d.mu.Unlock()
	return j.done
}

func (d *Dual) drain(partition string, q chan job) {
	defer d.wg.Done()
	for j := range q {
		j.done <- d.apply(partition, j)
	}
}

// apply runs one serialized write: primary with self-heal retry, then fallback
// unconditionally.
func (d *Dual) apply(partition string, j job) error {
	perr := d.applyPrimary(partition, j)
	if perr != nil {
		if errors.Is(perr, ErrSchema) {
			log.Printf("[WARN] store: primary write %s/%s failed structurally, recreating: %v", partition, j.key, perr)
			if rerr := d.primary.Recreate(); rerr != nil {
				log.Printf("[ERROR] store: primary recreate failed: %v", rerr)
			} else {
				perr = d.applyPrimary(partition, j)
				if perr != nil {
					log.Printf("[ERROR] store: primary retry %s/%s failed: %v", partition, j.key, perr)
				}
			}
		} else {
			// Transient failures never wipe the primary; the fallback still
			// takes the write below.
			log.Printf("[WARN] store: primary write %s/%s failed: %v", partition, j.key, perr)
		}
	}

	var ferr error
	if j.delete {
		ferr = d.fallback.Delete(partition, j.key)
	} else {
		ferr = d.fallback.Put(partition, j.key, j.value)
	}
	if ferr != nil {
		log.Printf("[WARN] store: fallback write %s/%s failed: %v", partition, j.key, ferr)
	}

	if perr != nil && ferr != nil {
		return fmt.Errorf("both tiers failed for %s/%s: primary: %v; fallback: %v", partition, j.key, perr, ferr)
	}
	return nil
}

func (d *Dual) applyPrimary(partition string, j job) error {
	if j.delete {
		return d.primary.Delete(partition, j.key)
	}
	return d.primary.Put(partition, j.key, j.value)
}

// Get reads from the primary tier; a miss or hard failure there falls through to
// the fallback copy.
func (d *Dual) Get(partition, key string) ([]byte, bool, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, false, ErrClosed
	}
	d.mu.Unlock()

	value, ok, err := d.primary.Get(partition, key)
	if err == nil && ok {
		return value, true, nil
	}
	if err != nil {
		log.Printf("[WARN] store: primary read %s/%s failed, using fallback: %v", partition, key, err)
	}
	return d.fallback.Get(partition, key)
}

// Close drains all pending writes and closes both tiers.
func (d *Dual) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.wg.Wait()
	perr := d.primary.Close()
	ferr := d.fallback.Close()
	if perr != nil {
		return perr
	}
	return ferr
}
