// Package shutdown runs registered close functions in reverse order when the
// process receives a termination signal.
package shutdown

import (
	"os"
	"os/signal"
	"syscall"
)

type logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

var ilog logger
var funcs []func() error

func Init(log logger) {
	ilog = log
	funcs = nil
}

// Register adds a close function. Functions run LIFO so dependencies close
// after their dependents.
func Register(fn func() error) {
	funcs = append(funcs, fn)
}

// Listen blocks until SIGINT/SIGTERM/SIGHUP, then runs every registered
// close function and exits.
func Listen() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	ilog.Infof("Program started, press Ctrl+C to exit")
	sig := <-quit
	ilog.Warnf("Received exit signal: %v", sig)
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](); err != nil {
			ilog.Errorf("close function failed: %v", err)
		}
	}
	ilog.Infof("Shutdown completed")
	os.Exit(0)
}
