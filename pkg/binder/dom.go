package binder

import (
	"context"
	"slices"
	"sync"
)

type (
	// Scope is the subtree searched for trigger elements.
	Scope interface {
		Find(class string) []Element
	}

	Element interface {
		OnActivate(handler func(Event))
	}

	Event interface {
		Context() context.Context
		PreventDefault()
	}
)

// Button is an in-memory trigger element. Click dispatches one activation to
// every registered handler.
type Button struct {
	Classes []string

	mu       sync.Mutex
	handlers []func(Event)
}

func NewButton(classes ...string) *Button {
	return &Button{Classes: classes}
}

func (b *Button) OnActivate(handler func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Click reports whether any handler prevented the default action.
func (b *Button) Click(ctx context.Context) bool {
	b.mu.Lock()
	handlers := slices.Clone(b.handlers)
	b.mu.Unlock()

	e := &clickEvent{ctx: ctx}
	for _, h := range handlers {
		h(e)
	}
	return e.prevented
}

func (b *Button) hasClass(class string) bool {
	return slices.Contains(b.Classes, class)
}

// Container is a flat Scope over a set of buttons.
type Container struct {
	Buttons []*Button
}

func NewContainer(buttons ...*Button) *Container {
	return &Container{Buttons: buttons}
}

func (c *Container) Find(class string) []Element {
	var found []Element
	for _, b := range c.Buttons {
		if b.hasClass(class) {
			found = append(found, b)
		}
	}
	return found
}

type clickEvent struct {
	ctx       context.Context
	prevented bool
}

func (e *clickEvent) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

func (e *clickEvent) PreventDefault() {
	e.prevented = true
}
