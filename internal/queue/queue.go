// Package queue implements the playback queue shared by FilePlayer and
// StreamingService sources (spec §3, §4.7).
package queue

import (
	"math/rand"
	"time"

	"audiorack/internal/errs"
)

// RepeatMode controls how Next/Previous wrap at playlist boundaries.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

// ChangeType classifies a QueueChanged event (spec §4.7).
type ChangeType int

const (
	Added ChangeType = iota
	Removed
	Moved
	Cleared
	CurrentChanged
)

// Item is one entry in the queue (spec §3).
type Item struct {
	ID           string
	Title        string
	Artist       string
	Album        string
	Duration     *time.Duration
	AlbumArtURL  string
	Index        int
	IsCurrent    bool
}

// Changed is published on every mutating operation (spec §4.7).
type Changed struct {
	ChangeType     ChangeType
	AffectedIndex  *int
	AffectedItem   *Item
}

// Queue is an ordered list of Items plus the current-item pointer. It is
// not safe for concurrent use; callers (the owning AudioSource) serialize
// access, matching the "queue mutations for a given source are serialized"
// ordering guarantee of spec §5.
type Queue struct {
	items        []Item
	currentIndex int // -1 iff empty
	repeat       RepeatMode
	shuffled     bool
	originalIDs  []string // insertion order, for un-shuffle
	seed         int64
	rng          *rand.Rand
	subs         []func(Changed)
}

// New returns an empty Queue. seed controls the deterministic shuffle
// permutation (spec §8 property/S6).
func New(seed int64) *Queue {
	return &Queue{currentIndex: -1, seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Subscribe registers fn to receive Changed events in causal order.
func (q *Queue) Subscribe(fn func(Changed)) {
	q.subs = append(q.subs, fn)
}

func (q *Queue) publish(c Changed) {
	for _, fn := range q.subs {
		fn(c)
	}
}

// Items returns a copy of the current queue contents.
func (q *Queue) Items() []Item {
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// CurrentIndex returns the index of the current item, or -1 if empty.
func (q *Queue) CurrentIndex() int { return q.currentIndex }

// Current returns the current item, or false if the queue is empty.
func (q *Queue) Current() (Item, bool) {
	if q.currentIndex < 0 || q.currentIndex >= len(q.items) {
		return Item{}, false
	}
	return q.items[q.currentIndex], true
}

// Len returns the number of items in the queue.
func (q *Queue) Len() int { return len(q.items) }

// Reset replaces the queue contents wholesale (used by LoadDirectory) and
// sets current to 0 if non-empty.
func (q *Queue) Reset(items []Item) {
	q.items = make([]Item, len(items))
	copy(q.items, items)
	q.originalIDs = make([]string, len(items))
	for i := range q.items {
		q.items[i].Index = i
		q.items[i].IsCurrent = i == 0
		q.originalIDs[i] = q.items[i].ID
	}
	q.shuffled = false
	if len(q.items) == 0 {
		q.currentIndex = -1
	} else {
		q.currentIndex = 0
	}
	q.reindex()
}

func (q *Queue) reindex() {
	for i := range q.items {
		q.items[i].Index = i
		q.items[i].IsCurrent = i == q.currentIndex
	}
}

// Add inserts item at position (appended when position is nil), emitting
// Added.
func (q *Queue) Add(item Item, position *int) {
	var insertedAt int
	if position == nil || *position >= len(q.items) {
		insertedAt = len(q.items)
		item.Index = insertedAt
		q.items = append(q.items, item)
		q.originalIDs = append(q.originalIDs, item.ID)
	} else {
		pos := *position
		if pos < 0 {
			pos = 0
		}
		insertedAt = pos
		q.items = append(q.items, Item{})
		copy(q.items[pos+1:], q.items[pos:])
		q.items[pos] = item
		q.originalIDs = append(q.originalIDs, "")
		copy(q.originalIDs[pos+1:], q.originalIDs[pos:])
		q.originalIDs[pos] = item.ID
	}
	if q.currentIndex < 0 {
		q.currentIndex = 0
	} else if position != nil && insertedAt <= q.currentIndex {
		q.currentIndex++
	}
	q.reindex()
	idx := insertedAt
	affected := q.items[idx]
	q.publish(Changed{ChangeType: Added, AffectedIndex: &idx, AffectedItem: &affected})
}

func idxOf(items []Item, id string, fallback int) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return fallback
}

// Remove deletes the item at index (spec §4.7: IndexOutOfRange on bad
// index; if index == current, the next item in queue order becomes
// current; if the queue becomes empty, caller must transition the
// source to Stopped).
func (q *Queue) Remove(index int) (becameEmpty bool, err error) {
	if index < 0 || index >= len(q.items) {
		return false, errs.New(errs.InvalidArgument, "Queue.Remove", "index out of range")
	}

	wasCurrent := index == q.currentIndex
	removed := q.items[index]
	q.items = append(q.items[:index], q.items[index+1:]...)

	switch {
	case len(q.items) == 0:
		q.currentIndex = -1
		becameEmpty = true
	case wasCurrent:
		if q.currentIndex >= len(q.items) {
			if q.repeat == RepeatAll {
				q.currentIndex = 0
			} else {
				q.currentIndex = len(q.items) - 1
			}
		}
	case index < q.currentIndex:
		q.currentIndex--
	}
	q.reindex()

	idx := index
	q.publish(Changed{ChangeType: Removed, AffectedIndex: &idx, AffectedItem: &removed})
	if wasCurrent && !becameEmpty {
		q.publishCurrentChanged()
	}
	return becameEmpty, nil
}

// Clear empties the queue (spec: state -> Stopped is the caller's job;
// here we just reset current_index = -1).
func (q *Queue) Clear() {
	q.items = nil
	q.originalIDs = nil
	q.currentIndex = -1
	q.publish(Changed{ChangeType: Cleared})
}

// Move relocates the item at from to to, preserving which item is
// current (spec §4.7).
func (q *Queue) Move(from, to int) error {
	if from < 0 || from >= len(q.items) || to < 0 || to >= len(q.items) {
		return errs.New(errs.InvalidArgument, "Queue.Move", "index out of range")
	}
	if from == to {
		return nil
	}

	currentID := ""
	if q.currentIndex >= 0 {
		currentID = q.items[q.currentIndex].ID
	}

	item := q.items[from]
	q.items = append(q.items[:from], q.items[from+1:]...)
	q.items = append(q.items, Item{})
	copy(q.items[to+1:], q.items[to:])
	q.items[to] = item

	if currentID != "" {
		q.currentIndex = idxOf(q.items, currentID, q.currentIndex)
	}
	q.reindex()

	idx := to
	moved := q.items[to]
	q.publish(Changed{ChangeType: Moved, AffectedIndex: &idx, AffectedItem: &moved})
	return nil
}

// JumpTo sets current to index, emitting CurrentChanged (spec §4.7).
func (q *Queue) JumpTo(index int) error {
	if index < 0 || index >= len(q.items) {
		return errs.New(errs.InvalidArgument, "Queue.JumpTo", "index out of range")
	}
	q.currentIndex = index
	q.reindex()
	q.publishCurrentChanged()
	return nil
}

func (q *Queue) publishCurrentChanged() {
	idx := q.currentIndex
	var item *Item
	if cur, ok := q.Current(); ok {
		item = &cur
	}
	q.publish(Changed{ChangeType: CurrentChanged, AffectedIndex: &idx, AffectedItem: item})
}

// SetRepeatMode changes the navigation wrap behaviour.
func (q *Queue) SetRepeatMode(mode RepeatMode) { q.repeat = mode }

// RepeatMode returns the current repeat mode.
func (q *Queue) RepeatMode() RepeatMode { return q.repeat }

// Next advances according to RepeatMode (spec §4.7). ended reports that
// navigation reached the end under RepeatOff (caller should Stop).
func (q *Queue) Next() (ended bool) {
	if len(q.items) == 0 {
		return true
	}
	switch q.repeat {
	case RepeatOne:
		q.publishCurrentChanged() // re-seek to 0 of same item, position handled by caller
		return false
	case RepeatAll:
		q.currentIndex = (q.currentIndex + 1) % len(q.items)
		q.reindex()
		q.publishCurrentChanged()
		return false
	default: // RepeatOff
		if q.currentIndex+1 >= len(q.items) {
			return true
		}
		q.currentIndex++
		q.reindex()
		q.publishCurrentChanged()
		return false
	}
}

// Previous moves to the prior item, wrapping under RepeatAll (spec §4.7).
// The "position > 3s -> seek to 0 instead" rule is the caller's
// responsibility since Queue has no notion of playback position.
func (q *Queue) Previous() {
	if len(q.items) == 0 {
		return
	}
	if q.currentIndex <= 0 {
		if q.repeat == RepeatAll {
			q.currentIndex = len(q.items) - 1
		} else {
			return
		}
	} else {
		q.currentIndex--
	}
	q.reindex()
	q.publishCurrentChanged()
}

// SetShuffle enables or disables shuffle. Enabling reshuffles the
// remaining items uniformly using the Queue's seeded RNG (deterministic
// per seed, spec §8 S6); disabling restores original insertion order.
func (q *Queue) SetShuffle(on bool) {
	if on == q.shuffled {
		return
	}
	if !on {
		q.restoreOriginalOrder()
		q.shuffled = false
		return
	}

	currentID := ""
	if q.currentIndex >= 0 {
		currentID = q.items[q.currentIndex].ID
	}
	q.rng = rand.New(rand.NewSource(q.seed))
	q.rng.Shuffle(len(q.items), func(i, j int) {
		q.items[i], q.items[j] = q.items[j], q.items[i]
	})
	if currentID != "" {
		q.currentIndex = idxOf(q.items, currentID, q.currentIndex)
	}
	q.shuffled = true
	q.reindex()
}

func (q *Queue) restoreOriginalOrder() {
	byID := make(map[string]Item, len(q.items))
	for _, it := range q.items {
		byID[it.ID] = it
	}
	currentID := ""
	if q.currentIndex >= 0 && q.currentIndex < len(q.items) {
		currentID = q.items[q.currentIndex].ID
	}
	ordered := make([]Item, 0, len(q.originalIDs))
	for _, id := range q.originalIDs {
		if it, ok := byID[id]; ok {
			ordered = append(ordered, it)
		}
	}
	q.items = ordered
	if currentID != "" {
		q.currentIndex = idxOf(q.items, currentID, q.currentIndex)
	}
	q.reindex()
}

// Shuffled reports whether shuffle is currently enabled.
func (q *Queue) Shuffled() bool { return q.shuffled }
