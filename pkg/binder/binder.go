// Package binder wires a login trigger to an identity assertion provider and
// reacts to the outcome of each activation.
package binder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/containifyci/assertion-login/pkg/model"
)

const (
	DefaultTriggerClass = "browserid"

	MessageAsserted    = "asserted"
	MessageNoAssertion = "login failed: no assertion"
)

var ErrNoTrigger = errors.New("no trigger element found")

type (
	// Requester asks the identity provider for an assertion. An empty
	// assertion means the user did not provide one.
	Requester interface {
		RequestAssertion(ctx context.Context) (model.Assertion, error)
	}

	// Forwarder sends an assertion to the login endpoint. A nil user with a
	// nil error means the endpoint answered "logged out".
	Forwarder interface {
		Forward(ctx context.Context, assertion model.Assertion) (*model.User, error)
	}

	Notifier interface {
		Notify(message string)
	}

	NotifierFunc func(message string)
)

func (f NotifierFunc) Notify(message string) { f(message) }

type Outcome int

const (
	OutcomeNoAssertion Outcome = iota
	OutcomeAcknowledged
	OutcomeLoggedIn
	OutcomeLoggedOut
	OutcomeForwardFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAcknowledged:
		return "acknowledged"
	case OutcomeLoggedIn:
		return "logged in"
	case OutcomeLoggedOut:
		return "logged out"
	case OutcomeForwardFailed:
		return "forward failed"
	default:
		return "no assertion"
	}
}

// Failed reports whether the outcome ended with a failure notification.
func (o Outcome) Failed() bool {
	return o == OutcomeNoAssertion || o == OutcomeForwardFailed
}

type Binder struct {
	requester Requester
	forwarder Forwarder
	notifier  Notifier
	root      Scope
	class     string
	logger    *slog.Logger

	mu    sync.Mutex
	bound map[Element]struct{}

	onLoggedIn  func(model.User)
	onLoggedOut func()
	onOutcome   func(Outcome)
}

type Option func(*Binder)

func WithRequester(r Requester) Option { return func(b *Binder) { b.requester = r } }

// WithForwarder enables sending assertions to the login endpoint. Without one
// the success path only acknowledges the assertion.
func WithForwarder(f Forwarder) Option { return func(b *Binder) { b.forwarder = f } }

func WithNotifier(n Notifier) Option { return func(b *Binder) { b.notifier = n } }

// WithRoot sets the scope searched when Bind is called without a container.
func WithRoot(s Scope) Option { return func(b *Binder) { b.root = s } }

func WithTriggerClass(class string) Option { return func(b *Binder) { b.class = class } }

func WithLogger(l *slog.Logger) Option { return func(b *Binder) { b.logger = l } }

func OnLoggedIn(fn func(model.User)) Option { return func(b *Binder) { b.onLoggedIn = fn } }

func OnLoggedOut(fn func()) Option { return func(b *Binder) { b.onLoggedOut = fn } }

// OnOutcome is called once per activation with the branch that was taken.
func OnOutcome(fn func(Outcome)) Option { return func(b *Binder) { b.onOutcome = fn } }

func New(opts ...Option) (*Binder, error) {
	b := &Binder{
		class:    DefaultTriggerClass,
		notifier: NotifierFunc(func(string) {}),
		logger:   slog.Default(),
		bound:    map[Element]struct{}{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.requester == nil {
		return nil, fmt.Errorf("binder: requester is required")
	}
	if b.class == "" {
		b.class = DefaultTriggerClass
	}
	return b, nil
}

// Bind attaches the login handler to every trigger element in container.
// A nil container falls back to the root scope.
func Bind(container Scope, opts ...Option) (*Binder, error) {
	b, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := b.Attach(container); err != nil {
		return nil, err
	}
	return b, nil
}

// Attach binds the trigger elements of container. Elements this binder already
// handles are skipped, so one activation always means one login attempt.
// Elements must be comparable, pointers in practice.
func (b *Binder) Attach(container Scope) error {
	scope := container
	if scope == nil {
		scope = b.root
	}
	if scope == nil {
		return fmt.Errorf("%w: no container and no root scope", ErrNoTrigger)
	}

	elements := scope.Find(b.class)
	if len(elements) == 0 {
		return fmt.Errorf("%w: class %q", ErrNoTrigger, b.class)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	added := 0
	for _, el := range elements {
		if _, ok := b.bound[el]; ok {
			continue
		}
		b.bound[el] = struct{}{}
		el.OnActivate(b.activate)
		added++
	}
	b.logger.Debug("login trigger bound", "class", b.class, "elements", added)
	return nil
}

func (b *Binder) activate(e Event) {
	e.PreventDefault()
	b.Handle(e.Context())
}

// Handle runs one login attempt: request an assertion, then take exactly one
// branch.
func (b *Binder) Handle(ctx context.Context) Outcome {
	outcome := b.handle(ctx)
	if b.onOutcome != nil {
		b.onOutcome(outcome)
	}
	return outcome
}

func (b *Binder) handle(ctx context.Context) Outcome {
	assertion, err := b.requester.RequestAssertion(ctx)
	if err != nil {
		b.logger.Warn("assertion request failed", "error", err)
		assertion = ""
	}

	if !assertion.Present() {
		b.notifier.Notify(MessageNoAssertion)
		return OutcomeNoAssertion
	}

	if b.forwarder == nil {
		b.notifier.Notify(MessageAsserted)
		return OutcomeAcknowledged
	}

	user, err := b.forwarder.Forward(ctx, assertion)
	if err != nil {
		b.logger.Error("login forwarding failed", "error", err)
		b.notifier.Notify(fmt.Sprintf("login failure %v", err))
		return OutcomeForwardFailed
	}

	if user == nil {
		b.logger.Info("login endpoint reported logged out")
		if b.onLoggedOut != nil {
			b.onLoggedOut()
		}
		return OutcomeLoggedOut
	}

	b.logger.Info("logged in", "user", user.ID, "email", user.Email)
	if b.onLoggedIn != nil {
		b.onLoggedIn(*user)
	}
	return OutcomeLoggedIn
}
