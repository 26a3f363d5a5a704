// Package notify provides a synchronous, ordered change-notification signal.
// Unlike a channel-based broker, delivery happens inline on the publisher's
// goroutine: every live subscriber is invoked exactly once, in registration
// order, before Publish returns. Subscribers are held through closable
// handles; closed handles are skipped and pruned once the outermost publish
// round completes.
package notify

import "slices"

// Subscription is the handle returned by Subscribe. Closing it detaches the
// subscriber; the signal prunes closed entries lazily.
type Subscription struct {
	closed bool
}

// Close marks the subscription dead. Safe to call more than once.
func (s *Subscription) Close() {
	s.closed = true
}

// Closed reports whether the subscription has been closed.
func (s *Subscription) Closed() bool {
	return s.closed
}

type entry[T any] struct {
	sub *Subscription
	fn  func(T) error
}

// Signal is a synchronous publish/subscribe point for values of type T.
// The zero value is ready to use.
type Signal[T any] struct {
	subs []entry[T]
	// publishing counts in-flight Publish calls. Subscribers may publish
	// reentrantly, so pruning waits until the outermost call finishes.
	publishing int
}

// Subscribe registers fn to be called on every publish until the returned
// subscription is closed.
func (s *Signal[T]) Subscribe(fn func(T) error) *Subscription {
	sub := &Subscription{}
	s.subs = append(s.subs, entry[T]{sub: sub, fn: fn})
	return sub
}

// Publish delivers ev to every live subscriber in registration order.
// Closed subscriptions are skipped and removed. The first subscriber error
// stops delivery and is returned to the publisher. A subscriber may itself
// publish on the same signal; each round delivers over its own snapshot.
func (s *Signal[T]) Publish(ev T) error {
	if len(s.subs) == 0 {
		return nil
	}

	snapshot := slices.Clone(s.subs)
	s.publishing++
	defer func() {
		s.publishing--
		if s.publishing == 0 {
			s.prune()
		}
	}()

	for _, e := range snapshot {
		if e.sub.closed {
			continue
		}
		if err := e.fn(ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *Signal[T]) prune() {
	live := s.subs[:0]
	for _, e := range s.subs {
		if !e.sub.closed {
			live = append(live, e)
		}
	}
	// Zero the tail so dropped entries do not pin their callbacks.
	for i := len(live); i < len(s.subs); i++ {
		s.subs[i] = entry[T]{}
	}
	s.subs = live
}

// SubscriberCount returns the number of registered subscriptions, including
// closed ones that have not been pruned yet.
func (s *Signal[T]) SubscriberCount() int {
	return len(s.subs)
}

// LiveCount returns the number of open subscriptions.
func (s *Signal[T]) LiveCount() int {
	n := 0
	for _, e := range s.subs {
		if !e.sub.closed {
			n++
		}
	}
	return n
}
