// Package restart replaces the running process with a fresh copy of itself.
package restart

import (
	"os"
	"sync"

	"github.com/CodedInternet/matthieu/internal/log"
	"golang.org/x/sys/unix"
)

// Restarter re-executes the current binary with the same arguments and
// environment. Restart does not return unless exec is stubbed out.
type Restarter struct {
	lock  sync.Mutex
	hooks []func() error

	exec func(argv0 string, argv []string, envv []string) error
	exit func(code int)
}

func New() *Restarter {
	return &Restarter{
		exec: unix.Exec,
		exit: os.Exit,
	}
}

// OnRestart registers a hook run before the process is replaced. Hooks run
// in reverse order of registration, like deferred calls.
func (r *Restarter) OnRestart(hook func() error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.hooks = append(r.hooks, hook)
}

func (r *Restarter) Restart() {
	r.lock.Lock()
	hooks := r.hooks
	r.hooks = nil
	r.lock.Unlock()

	log.Warn("restart requested")
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](); err != nil {
			log.Error("restart hook failed", "err", err)
		}
	}

	path, err := os.Executable()
	if err != nil {
		path = os.Args[0]
	}

	err = r.exec(path, os.Args, os.Environ())
	// only reached when exec failed; let the supervisor start us again
	log.Error("unable to re-exec", "path", path, "err", err)
	r.exit(1)
}
