package v1

import (
	"github.com/tinoosan/expenses/internal/notify"
	"github.com/tinoosan/expenses/internal/settings"
)

// Compile-time interface assertions for the concrete collaborators wired in main.
var (
	_ Preferences = (*settings.Context)(nil)
	_ NoticeFeed  = (*notify.Feed)(nil)
)
