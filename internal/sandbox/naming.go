package sandbox

import (
	"path/filepath"
	"strings"
)

// emptyWxidSentinel is the explicit stand-in for an empty wxid. Silently
// deriving a container name from an empty string would collide with any
// other user whose sanitized wxid also happens to be empty; the router
// rejects an empty wxid at admission time, but the sandbox layer
// defends independently rather than trust that.
const emptyWxidSentinel = "_empty"

// sanitize turns a wxid into a string Docker will accept as (part of) a
// container name: only [A-Za-z0-9_.-], every other character (rune)
// replaced with a single "_". Idempotent: sanitizing an already-sanitized string is a no-op.
func sanitize(wxid string) string {
	if wxid == "" {
		return emptyWxidSentinel
	}
	var b strings.Builder
	b.Grow(len(wxid))
	for _, r := range wxid {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '.' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ContainerName derives the Docker container name for a wxid.
func ContainerName(prefix, wxid string) string {
	return prefix + sanitize(wxid)
}

// UserDataDir returns the per-user host data root, and its two
// persistent subdirectories.
func UserDataDir(dataDir, wxid string) (workspace, claudeConfig string) {
	root := filepath.Join(dataDir, sanitize(wxid))
	return filepath.Join(root, "workspace"), filepath.Join(root, "claude-config")
}
