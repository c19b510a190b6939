package cache

import "fmt"

// Key prefixes. The session flash keeps the historical "userData" name.
const (
	UserDataPrefix = "userData:"
)

// UserDataKey returns the key holding the UserSession of one browser session.
//
// Example: "userData:2f1c3e0a-7b8d-4f7e-9a51-0c7d9d0b6f11"
func UserDataKey(sessionID string) string {
	return fmt.Sprintf("%s%s", UserDataPrefix, sessionID)
}

// UserDataPattern matches every stored UserSession.
func UserDataPattern() string {
	return UserDataPrefix + "*"
}
