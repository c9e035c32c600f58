package backend

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Notifier delivers a best-effort notification when the
// process is about to go away
type Notifier interface {
	// Subscribe registers fn to run once when the process is
	// about to exit. cancel removes the subscription.
	Subscribe(fn func()) (cancel func())
}

// SignalNotifier notifies subscribers when the process receives
// SIGINT or SIGTERM. After running the subscribers it stops listening
// and delivers the signal again so the default behavior (exit) happens.
type SignalNotifier struct {
	mu          sync.Mutex
	next        int
	subscribers map[int]func()
	signals     chan os.Signal
}

// NewSignalNotifier creates a SignalNotifier. It does not listen for
// signals until the first subscription.
func NewSignalNotifier() *SignalNotifier {
	return &SignalNotifier{subscribers: map[int]func(){}}
}

// Subscribe implements Notifier.Subscribe
func (notifier *SignalNotifier) Subscribe(fn func()) func() {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()

	id := notifier.next
	notifier.next++
	notifier.subscribers[id] = fn

	if notifier.signals == nil {
		notifier.signals = make(chan os.Signal, 1)
		signal.Notify(notifier.signals, os.Interrupt, syscall.SIGTERM)

		go notifier.wait(notifier.signals)
	}

	return func() {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()

		delete(notifier.subscribers, id)

		if len(notifier.subscribers) == 0 && notifier.signals != nil {
			signal.Stop(notifier.signals)
			close(notifier.signals)
			notifier.signals = nil
		}
	}
}

func (notifier *SignalNotifier) wait(signals chan os.Signal) {
	sig, ok := <-signals

	if !ok {
		return
	}

	notifier.mu.Lock()
	signal.Stop(signals)
	notifier.signals = nil
	subscribers := make([]func(), 0, len(notifier.subscribers))

	for _, fn := range notifier.subscribers {
		subscribers = append(subscribers, fn)
	}

	notifier.subscribers = map[int]func(){}
	notifier.mu.Unlock()

	for _, fn := range subscribers {
		fn()
	}

	if process, err := os.FindProcess(os.Getpid()); err == nil {
		process.Signal(sig)
	}
}

// ManualNotifier is a Notifier that fires when Notify is called.
// It is meant for tests and for hosts with their own shutdown hooks.
type ManualNotifier struct {
	mu          sync.Mutex
	next        int
	subscribers map[int]func()
}

// NewManualNotifier creates a ManualNotifier
func NewManualNotifier() *ManualNotifier {
	return &ManualNotifier{subscribers: map[int]func(){}}
}

// Subscribe implements Notifier.Subscribe
func (notifier *ManualNotifier) Subscribe(fn func()) func() {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()

	id := notifier.next
	notifier.next++
	notifier.subscribers[id] = fn

	return func() {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()

		delete(notifier.subscribers, id)
	}
}

// Subscribers returns the number of active subscriptions
func (notifier *ManualNotifier) Subscribers() int {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()

	return len(notifier.subscribers)
}

// Notify runs every subscriber. Subscriptions stay active.
func (notifier *ManualNotifier) Notify() {
	notifier.mu.Lock()
	subscribers := make([]func(), 0, len(notifier.subscribers))

	for _, fn := range notifier.subscribers {
		subscribers = append(subscribers, fn)
	}

	notifier.mu.Unlock()

	for _, fn := range subscribers {
		fn()
	}
}
