package config

import "os"

// BecomePasswordEnv is read when the password is not typed interactively.
const BecomePasswordEnv = "CALCIFER_BECOME_PASSWORD"

// Runtime carries the options of a single CLI invocation.
type Runtime struct {
	// Verbose renders sub-step results under each task.
	Verbose bool
	// BecomePassword is piped to sudo on remote hosts. Empty means the
	// target must allow passwordless sudo.
	BecomePassword string
}

// RuntimeFromEnv returns a Runtime with the become password taken from the
// environment, if set.
func RuntimeFromEnv(verbose bool) Runtime {
	return Runtime{
		Verbose:        verbose,
		BecomePassword: os.Getenv(BecomePasswordEnv),
	}
}
