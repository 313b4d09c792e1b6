package vault

import (
	"fmt"
	"strings"
)

// checkKey rejects keys that could escape the vault root.
// Keys are slash-separated relative paths such as "backup_full_x.json" or "catalog/x.db".
func checkKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty vault key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("invalid vault key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid vault key %q", key)
		}
	}
	return nil
}
