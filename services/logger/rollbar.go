package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
)

// RollbarLogger prints to std and reports to Rollbar.
// Debug entries only reach Rollbar in debug mode.
type RollbarLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, debug: conf.Debug}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// entry is a log call split into what Rollbar understands.
type entry struct {
	msg    string
	err    error
	custom map[string]interface{}
	usr    *user.User
}

// parse sorts args: an error, custom maps (merged), one user.User (the first wins) and training units.
// Anything else is kept as custom data under "args".
func (l RollbarLogger) parse(msg string, args []interface{}) entry {
	e := entry{msg: msg, custom: make(map[string]interface{})}
	var units, extra []string
	for _, arg := range args {
		switch v := arg.(type) {
		case error:
			if e.err == nil {
				e.err = v
			} else {
				extra = append(extra, v.Error())
			}
		case map[string]interface{}:
			for k, val := range v {
				e.custom[k] = val
			}
		case user.User:
			if e.usr == nil {
				usr := v
				e.usr = &usr
				e.custom["role"] = usr.Role
			}
		case training.Unit:
			units = append(units, v.String())
		default:
			extra = append(extra, fmt.Sprintf("%+v", v))
		}
	}
	if len(units) == 1 {
		e.custom["unit"] = units[0]
	} else if len(units) > 1 {
		e.custom["units"] = units
	}
	if len(extra) > 0 {
		e.custom["args"] = extra
	}
	return e
}

func (l RollbarLogger) report(level string, e entry) {
	if e.usr != nil {
		rollbar.SetPerson(e.usr.ID, e.usr.Name, e.usr.Email)
	} else {
		rollbar.ClearPerson()
	}
	args := make([]interface{}, 0, 3)
	if e.err != nil {
		args = append(args, e.err)
	}
	args = append(args, e.msg)
	if len(e.custom) > 0 {
		args = append(args, e.custom)
	}
	rollbar.Log(level, args...)
}

func (l RollbarLogger) print(level string, e entry) {
	var b strings.Builder
	b.WriteString(strings.ToUpper(level))
	b.WriteString(": ")
	b.WriteString(e.msg)
	keys := make([]string, 0, len(e.custom))
	for k := range e.custom {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.custom[k])
	}
	if e.usr != nil {
		fmt.Fprintf(&b, " user=%s", e.usr.ID)
	}
	l.std.Println(b.String())
	if e.err != nil {
		l.std.Printf("%+v\n", e.err)
	}
}

func (l RollbarLogger) log(level string, msg string, args []interface{}) {
	e := l.parse(msg, args)
	if level != rollbar.DEBUG || l.debug {
		l.report(level, e)
	}
	l.print(level, e)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.log(rollbar.INFO, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.log(rollbar.WARN, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
