package kv

import (
	"context"
	"fmt"
)

// commandQueueSize matches the bounded mailbox size used by the original
// kv_store actor: a burst of writers blocks rather than growing memory
// unboundedly.
const commandQueueSize = 32

type opKind int

const (
	opGet opKind = iota
	opExists
	opSet
	opSetArray
	opDelete
	opAppend
	opListKeys
)

type command struct {
	op    opKind
	key   string
	value any
	array []any
	reply chan result
}

type result struct {
	value  Value
	found  bool
	exists bool
	keys   []string
}

// Store is a single-owner key-value map served by one goroutine over a
// bounded command queue. All mutation and reads go through that goroutine;
// callers never touch the underlying map directly, which is what lets any
// number of concurrent callers share a Store without locks.
type Store struct {
	commands chan command
	done     chan struct{}
}

// New starts the owning goroutine and returns a ready Store. Call Close when
// the store is no longer needed; Close blocks until the goroutine has
// drained any in-flight commands and exited.
func New() *Store {
	s := &Store{
		commands: make(chan command, commandQueueSize),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Store) run() {
	defer close(s.done)

	data := make(map[string]Value)

	for cmd := range s.commands {
		switch cmd.op {
		case opGet:
			v, ok := data[cmd.key]
			cmd.reply <- result{value: v, found: ok}

		case opExists:
			_, ok := data[cmd.key]
			cmd.reply <- result{exists: ok}

		case opSet:
			data[cmd.key] = Scalar(cmd.value)
			cmd.reply <- result{}

		case opSetArray:
			data[cmd.key] = NewArray(cmd.array)
			cmd.reply <- result{}

		case opDelete:
			delete(data, cmd.key)
			cmd.reply <- result{}

		case opAppend:
			if existing, ok := data[cmd.key]; ok && existing.IsArray {
				existing.Array = append(existing.Array, cmd.value)
				data[cmd.key] = existing
			}
			cmd.reply <- result{}

		case opListKeys:
			keys := make([]string, 0, len(data))
			for k := range data {
				keys = append(keys, k)
			}
			cmd.reply <- result{keys: keys}
		}
	}
}

// Close shuts the store down, draining any commands already enqueued before
// the owning goroutine exits.
func (s *Store) Close() {
	close(s.commands)
	<-s.done
}

func (s *Store) send(ctx context.Context, cmd command) (result, error) {
	select {
	case s.commands <- cmd:
	case <-ctx.Done():
		return result{}, ctx.Err()
	}

	select {
	case r := <-cmd.reply:
		return r, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// Get looks up key, returning ok=false if absent.
func (s *Store) Get(ctx context.Context, key string) (Value, bool, error) {
	r, err := s.send(ctx, command{op: opGet, key: key, reply: make(chan result, 1)})
	if err != nil {
		return Value{}, false, err
	}
	return r.value, r.found, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	r, err := s.send(ctx, command{op: opExists, key: key, reply: make(chan result, 1)})
	if err != nil {
		return false, err
	}
	return r.exists, nil
}

// Set inserts or overwrites key with a scalar value.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	_, err := s.send(ctx, command{op: opSet, key: key, value: value, reply: make(chan result, 1)})
	return err
}

// SetArray inserts or overwrites key with an array value.
func (s *Store) SetArray(ctx context.Context, key string, items []any) error {
	_, err := s.send(ctx, command{op: opSetArray, key: key, array: items, reply: make(chan result, 1)})
	return err
}

// Delete removes key, if present.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.send(ctx, command{op: opDelete, key: key, reply: make(chan result, 1)})
	return err
}

// Append pushes value onto key's array, if key currently holds an array.
// It is a no-op (not an error) when the key is absent or not an array,
// matching the original actor's "if current value is Array, push; else
// no-op" semantics.
func (s *Store) Append(ctx context.Context, key string, value any) error {
	_, err := s.send(ctx, command{op: opAppend, key: key, value: value, reply: make(chan result, 1)})
	return err
}

// ListKeys returns a snapshot of the current key set. Order is unspecified.
func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	r, err := s.send(ctx, command{op: opListKeys, reply: make(chan result, 1)})
	if err != nil {
		return nil, err
	}
	return r.keys, nil
}

// Snapshot builds a map of every key currently in the store to its dynamic
// value, the shape RunScript and the interpolator need to hand to the script
// host as an environment.
func (s *Store) Snapshot(ctx context.Context) (map[string]any, error) {
	keys, err := s.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}

	env := make(map[string]any, len(keys))
	for _, key := range keys {
		v, ok, err := s.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("getting key %q: %w", key, err)
		}
		if !ok {
			continue
		}
		env[key] = v.Interface()
	}
	return env, nil
}
