package study

import "sort"

// Shortcut is a handler bound to a single key combination.
type Shortcut struct {
	Keys        string
	Description string
	Handler     func()
}

// Help describes a live binding for on-screen help.
type Help struct {
	Action      string
	Keys        string
	Description string
}

type binding struct {
	action   string
	shortcut Shortcut
	seq      uint64
}

// Binder maps key combinations to exactly one live handler each.
type Binder struct {
	bindings map[string]binding
	seq      uint64
}

// NewBinder returns an empty binder.
func NewBinder() *Binder {
	return &Binder{bindings: map[string]binding{}}
}

// Bind registers a shortcut under an action name. A binding already present
// for the same key combination is replaced.
func (b *Binder) Bind(action string, s Shortcut) {
	if s.Keys == "" || s.Handler == nil {
		return
	}
	b.seq++
	b.bindings[s.Keys] = binding{action: action, shortcut: s, seq: b.seq}
}

// Unbind removes the binding for a key combination, if any.
func (b *Binder) Unbind(keys string) {
	delete(b.bindings, keys)
}

// Reset drops every binding.
func (b *Binder) Reset() {
	b.bindings = map[string]binding{}
}

// Dispatch runs the handler bound to keys and reports whether one was bound.
func (b *Binder) Dispatch(keys string) bool {
	entry, ok := b.bindings[keys]
	if !ok {
		return false
	}
	entry.shortcut.Handler()
	return true
}

// Bound reports the action currently bound to keys.
func (b *Binder) Bound(keys string) (string, bool) {
	entry, ok := b.bindings[keys]
	if !ok {
		return "", false
	}
	return entry.action, true
}

// Len returns the number of live bindings.
func (b *Binder) Len() int {
	return len(b.bindings)
}

// Describe lists live bindings in the order they were bound.
func (b *Binder) Describe() []Help {
	entries := make([]binding, 0, len(b.bindings))
	for _, entry := range b.bindings {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})
	out := make([]Help, 0, len(entries))
	for _, entry := range entries {
		out = append(out, Help{
			Action:      entry.action,
			Keys:        entry.shortcut.Keys,
			Description: entry.shortcut.Description,
		})
	}
	return out
}
