package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID   = "build_id"
	KeyState     = "state"
	KeyOwner     = "owner"
	KeyProject   = "project"
	KeySessionID = "session_id"
	KeyRound     = "round"
	KeyWatched   = "watched"
	KeyFailed    = "failed"
	KeyMethod    = "method"
	KeyURL       = "url"
	KeyError     = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id int64) slog.Attr    { return slog.Int64(KeyBuildID, id) }
func State(s string) slog.Attr      { return slog.String(KeyState, s) }
func Owner(o string) slog.Attr      { return slog.String(KeyOwner, o) }
func Project(p string) slog.Attr    { return slog.String(KeyProject, p) }
func SessionID(id string) slog.Attr { return slog.String(KeySessionID, id) }
func Round(n int) slog.Attr         { return slog.Int(KeyRound, n) }
func Watched(n int) slog.Attr       { return slog.Int(KeyWatched, n) }
func Failed(n int) slog.Attr        { return slog.Int(KeyFailed, n) }
func Method(m string) slog.Attr     { return slog.String(KeyMethod, m) }
func URL(u string) slog.Attr        { return slog.String(KeyURL, u) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
