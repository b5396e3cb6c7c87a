// Package common holds helpers shared by the lidarlite daemons and tools.
package common

import "os/user"

// IsRunningAsRoot reports whether the process runs as root, which
// installing the system service needs.
func IsRunningAsRoot() bool {
	usr, err := user.Current()
	if err != nil {
		return false
	}
	return usr.Uid == "0"
}
