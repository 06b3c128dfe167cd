// Package logging provides a single process-wide structured logger, with
// named sub-loggers per component, mirroring the original Python source's
// logging.getLogger("SeqProv")-per-module convention.
package logging

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.Mutex
	root    = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	loggers = map[string]*log.Logger{}
)

// SetLevel sets the level for all loggers created through For, present and
// future.
func SetLevel(level log.Level) {
	mu.Lock()
	defer mu.Unlock()
	root.SetLevel(level)
	for _, l := range loggers {
		l.SetLevel(level)
	}
}

// For returns the named sub-logger, creating it on first use.
func For(component string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[component]; ok {
		return l
	}
	l := root.With("component", component)
	loggers[component] = l
	return l
}
