// Package logsvc implements core.Logger on top of the standard logger, reporting to rollbar when enabled.
package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(false)
	return &RollbarLogger{std: std}
}

// Enable turns reporting to rollbar on or off; printing to the std logger always happens.
func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare moves the acting user out of args into the rollbar person.
// expected args: error, map[string]interface{}, user.User
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		if usr, ok := arg.(user.User); ok {
			if !usrSet {
				rollbar.SetPerson(usr.ID, usr.FullName, usr.Email)
				usrSet = true
			}
			continue
		}
		newArgs = append(newArgs, arg)
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l *RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("%s: %s", level, msg)
	for _, arg := range args {
		if usr, ok := arg.(user.User); ok {
			l.std.Printf("\tuser: %s <%s>", usr.ID, usr.Email)
			continue
		}
		l.std.Printf("\t%+v", arg)
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
