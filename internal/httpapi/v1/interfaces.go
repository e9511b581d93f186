package v1

import (
	"context"

	"github.com/tinoosan/expenses/internal/notify"
	"github.com/tinoosan/expenses/internal/settings"
)

// Preferences abstracts the display settings context.
type Preferences interface {
	Snapshot() settings.Values
	Apply(ctx context.Context, p settings.Patch) (settings.Values, error)
	ToggleDarkMode(ctx context.Context) (settings.Values, error)
	ToggleCompactView(ctx context.Context) (settings.Values, error)
}

// NoticeFeed abstracts the recent-notices buffer.
type NoticeFeed interface {
	// Recent returns up to limit notices for owner, newest first.
	Recent(owner string, limit int) []notify.Notice
}
