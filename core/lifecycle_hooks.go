package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// LifecycleHook observes channel lifecycle events.
type LifecycleHook interface {
	Name() string
	OnEvent(ctx context.Context, event ChannelEvent) error
}

type LifecycleHookFunc struct {
	HookName string
	Fn       func(ctx context.Context, event ChannelEvent) error
}

func (h LifecycleHookFunc) Name() string {
	return h.HookName
}

func (h LifecycleHookFunc) OnEvent(ctx context.Context, event ChannelEvent) error {
	if h.Fn == nil {
		return nil
	}
	return h.Fn(ctx, event)
}

type LifecycleHookCoordinator struct {
	mu         sync.RWMutex
	preCommit  []LifecycleHook
	postCommit []LifecycleHook
}

func NewLifecycleHookCoordinator() *LifecycleHookCoordinator {
	return &LifecycleHookCoordinator{
		preCommit:  make([]LifecycleHook, 0),
		postCommit: make([]LifecycleHook, 0),
	}
}

func (c *LifecycleHookCoordinator) RegisterPreCommit(hook LifecycleHook) {
	if c == nil || hook == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preCommit = append(c.preCommit, hook)
}

func (c *LifecycleHookCoordinator) RegisterPostCommit(hook LifecycleHook) {
	if c == nil || hook == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postCommit = append(c.postCommit, hook)
}

// ExecutePreCommit runs veto hooks in registration order before a channel
// change is persisted. The first failure aborts the change.
func (c *LifecycleHookCoordinator) ExecutePreCommit(ctx context.Context, event ChannelEvent) error {
	for _, hook := range c.preHooks() {
		if hook == nil {
			continue
		}
		if err := hook.OnEvent(ctx, event); err != nil {
			return fmt.Errorf("core: pre-commit lifecycle hook %q failed: %w", hookName(hook), err)
		}
	}
	return nil
}

// ExecutePostCommit runs every hook after the change is stored. Failures are
// aggregated and never roll anything back.
func (c *LifecycleHookCoordinator) ExecutePostCommit(ctx context.Context, event ChannelEvent) error {
	var hookErr error
	for _, hook := range c.postHooks() {
		if hook == nil {
			continue
		}
		if err := hook.OnEvent(ctx, event); err != nil {
			hookErr = errors.Join(hookErr, fmt.Errorf("post-commit lifecycle hook %q failed: %w", hookName(hook), err))
		}
	}
	return hookErr
}

func (c *LifecycleHookCoordinator) preHooks() []LifecycleHook {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]LifecycleHook, len(c.preCommit))
	copy(out, c.preCommit)
	return out
}

func (c *LifecycleHookCoordinator) postHooks() []LifecycleHook {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]LifecycleHook, len(c.postCommit))
	copy(out, c.postCommit)
	return out
}

func hookName(hook LifecycleHook) string {
	if hook == nil {
		return "unknown"
	}
	name := strings.TrimSpace(hook.Name())
	if name == "" {
		return "unnamed"
	}
	return name
}

// PublisherHook forwards lifecycle events to an EventPublisher.
func PublisherHook(publisher EventPublisher) LifecycleHook {
	return LifecycleHookFunc{
		HookName: "event_publisher",
		Fn: func(ctx context.Context, event ChannelEvent) error {
			if publisher == nil {
				return nil
			}
			return publisher.Publish(ctx, event)
		},
	}
}
