package profile

import (
	"fmt"
	"regexp"

	"github.com/matheus3301/storechat/internal/config"
)

var nameRegexp = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ValidateName checks that name is usable as a chat display name.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid user name %q: must match ^[A-Za-z0-9_.-]{1,64}$", name)
	}
	return nil
}

// ResolveUser determines the local user name using precedence:
// 1. flagOverride (--user flag)
// 2. config.toml user_name
func ResolveUser(flagOverride string, cfg *config.Config) (string, error) {
	name := flagOverride
	if name == "" && cfg != nil {
		name = cfg.UserName
	}
	if name == "" {
		return "", fmt.Errorf("no user name: pass --user or set user_name in %s", ConfigPath())
	}
	return name, ValidateName(name)
}
