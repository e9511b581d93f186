// Package settings holds the display preferences shared by every view:
// dark mode and compact view. They are read once at startup and written
// through to durable storage on every change.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tinoosan/expenses/internal/errs"
	"github.com/tinoosan/expenses/internal/storage"
)

// Storage keys, one JSON boolean each.
const (
	KeyDarkMode    = "darkMode"
	KeyCompactView = "compactView"
)

// Values is a point-in-time copy of the preferences.
type Values struct {
	DarkMode    bool `json:"darkMode"`
	CompactView bool `json:"compactView"`
}

// Patch carries optional changes.
type Patch struct {
	DarkMode    *bool `json:"darkMode,omitempty"`
	CompactView *bool `json:"compactView,omitempty"`
}

// Context is the preferences object passed explicitly to whoever needs it.
type Context struct {
	mu  sync.Mutex
	kv  storage.KV
	log *slog.Logger
	v   Values
}

// Load reads both preferences. Missing keys default to false; unreadable
// values fall back to false with a warning. Only a failing medium is an error.
func Load(ctx context.Context, kv storage.KV, logger *slog.Logger) (*Context, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Context{kv: kv, log: logger}
	var err error
	if c.v.DarkMode, err = c.readBool(ctx, KeyDarkMode); err != nil {
		return nil, err
	}
	if c.v.CompactView, err = c.readBool(ctx, KeyCompactView); err != nil {
		return nil, err
	}
	return c, nil
}

// Snapshot returns the current values.
func (c *Context) Snapshot() Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *Context) SetDarkMode(ctx context.Context, on bool) (Values, error) {
	return c.Apply(ctx, Patch{DarkMode: &on})
}

func (c *Context) SetCompactView(ctx context.Context, on bool) (Values, error) {
	return c.Apply(ctx, Patch{CompactView: &on})
}

func (c *Context) ToggleDarkMode(ctx context.Context) (Values, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyLocked(ctx, Patch{DarkMode: ptr(!c.v.DarkMode)})
}

func (c *Context) ToggleCompactView(ctx context.Context) (Values, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyLocked(ctx, Patch{CompactView: ptr(!c.v.CompactView)})
}

// Apply writes each changed value through to storage, then updates memory.
// A Patch is all or nothing: if a later write fails, earlier writes of the
// same Patch are reverted and the in-memory values are left as they were.
func (c *Context) Apply(ctx context.Context, p Patch) (Values, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyLocked(ctx, p)
}

func (c *Context) applyLocked(ctx context.Context, p Patch) (Values, error) {
	type change struct {
		key      string
		from, to bool
		field    *bool
	}
	var changes []change
	if p.DarkMode != nil {
		changes = append(changes, change{KeyDarkMode, c.v.DarkMode, *p.DarkMode, &c.v.DarkMode})
	}
	if p.CompactView != nil {
		changes = append(changes, change{KeyCompactView, c.v.CompactView, *p.CompactView, &c.v.CompactView})
	}
	for i, ch := range changes {
		if err := c.writeBool(ctx, ch.key, ch.to); err != nil {
			for _, done := range changes[:i] {
				if rerr := c.writeBool(ctx, done.key, done.from); rerr != nil {
					// storage keeps the new value; memory follows storage
					c.log.Error("preference rollback failed", "key", done.key, "err", rerr)
					*done.field = done.to
				}
			}
			return c.v, err
		}
	}
	for _, ch := range changes {
		*ch.field = ch.to
	}
	return c.v, nil
}

func (c *Context) readBool(ctx context.Context, key string) (bool, error) {
	raw, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		return false, errs.Unavailable(fmt.Errorf("read %s: %w", key, err))
	}
	if !ok || raw == "" {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		c.log.Warn("ignoring unreadable preference", "key", key, "value", raw, "err", err)
		return false, nil
	}
	return b, nil
}

func (c *Context) writeBool(ctx context.Context, key string, v bool) error {
	b, _ := json.Marshal(v)
	if err := c.kv.Set(ctx, key, string(b)); err != nil {
		return errs.Unavailable(fmt.Errorf("write %s: %w", key, err))
	}
	return nil
}

func ptr(b bool) *bool { return &b }
