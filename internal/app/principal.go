package app

import (
	"os/user"

	"cmsbackup/internal/model"
)

// currentPrincipal identifies the OS user running a manual command.
// It returns nil when the user cannot be determined.
func currentPrincipal() *model.Principal {
	u, err := user.Current()
	if err != nil {
		return nil
	}
	return &model.Principal{ID: u.Uid, Name: u.Username}
}
