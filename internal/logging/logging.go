/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package logging provides the structured, leveled logger used throughout
// couic. It is a syslog (RFC5424) aware logger: every log line can carry
// structured data parameters in addition to a free-form message, and the
// same logger can fan a line out to any number of writers (stdout, a
// rotating log file, an audit sink) at once.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

const (
	OFF      Level = 0
	DEBUG    Level = 1
	INFO     Level = 2
	WARN     Level = 3
	ERROR    Level = 4
	CRITICAL Level = 5
	FATAL    Level = 6
)

const (
	DefaultDepth = 3

	DefaultID = `couic@1`

	maxAppname  = 48
	maxHostname = 255
)

var (
	ErrNotOpen      = errors.New("logger is not open")
	ErrInvalidLevel = errors.New("log level is invalid")
)

type Level int

type metadata struct {
	hostname string
	appname  string
}

func (m *metadata) SetHostname(hostname string) error {
	if hostname != `` {
		if err := checkName(hostname); err != nil {
			return err
		}
	}
	if m.hostname = hostname; m.hostname == `` {
		if h, err := os.Hostname(); err == nil {
			m.hostname = h
		}
	}
	if len(m.hostname) > maxHostname {
		m.hostname = m.hostname[:maxHostname]
	}
	return nil
}

func (m *metadata) SetAppname(appname string) error {
	if appname != `` {
		if err := checkName(appname); err != nil {
			return err
		}
	}
	if m.appname = appname; len(m.appname) > maxAppname {
		m.appname = m.appname[:maxAppname]
	}
	return nil
}

func (m *metadata) guessHostnameAppname() {
	m.SetHostname(``)
	m.SetAppname(`couicd`)
}

// Relay receives every logged line in addition to whatever writers are
// attached; used by the bbolt audit sink to tee mutation records.
type Relay interface {
	WriteLog(time.Time, []byte) error
}

type Logger struct {
	metadata
	wtrs []io.WriteCloser
	rls  []Relay
	mtx  sync.Mutex
	lvl  Level
	hot  bool
	raw  bool
}

// NewFile creates a logger writing to f, appending if the file exists.
func NewFile(f string) (*Logger, error) {
	fout, err := os.OpenFile(f, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0660)
	if err != nil {
		return nil, err
	}
	return New(fout), nil
}

// New creates a logger with wtr as its sole writer, at level INFO.
func New(wtr io.WriteCloser) (l *Logger) {
	l = &Logger{
		wtrs: []io.WriteCloser{wtr},
		lvl:  INFO,
		hot:  true,
	}
	l.guessHostnameAppname()
	return
}

// NewDiscardLogger returns a logger that discards everything, for tests.
func NewDiscardLogger() *Logger {
	var dc discardCloser
	return New(dc)
}

// NewStderrLogger returns a logger writing RFC5424 lines to stderr.
func NewStderrLogger() *Logger {
	return New(nopCloser{os.Stderr})
}

func (l *Logger) Close() (err error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err = l.ready(); err != nil {
		return
	}
	l.hot = false
	for i := range l.wtrs {
		if lerr := l.wtrs[i].Close(); lerr != nil {
			err = lerr
		}
	}
	return
}

func (l *Logger) EnableRawMode() {
	l.raw = true
}

func (l *Logger) RawMode() bool {
	return l.raw
}

func (l *Logger) ready() error {
	if !l.hot || (len(l.wtrs) == 0 && len(l.rls) == 0) {
		return ErrNotOpen
	}
	return nil
}

// AddWriter attaches an additional writer that receives every logged line.
func (l *Logger) AddWriter(wtr io.WriteCloser) error {
	if wtr == nil {
		return errors.New("invalid writer, is nil")
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.ready(); err != nil {
		return err
	}
	l.wtrs = append(l.wtrs, wtr)
	return nil
}

// AddRelay attaches a Relay, used by the audit log sink.
func (l *Logger) AddRelay(r Relay) error {
	if r == nil {
		return errors.New("nil relay")
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.ready(); err != nil {
		return err
	}
	l.rls = append(l.rls, r)
	return nil
}

func (l *Logger) DeleteWriter(wtr io.Writer) error {
	if wtr == nil {
		return errors.New("invalid writer, is nil")
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.ready(); err != nil {
		return err
	}
	for i := len(l.wtrs) - 1; i >= 0; i-- {
		if l.wtrs[i] == wtr {
			l.wtrs = append(l.wtrs[:i], l.wtrs[i+1:]...)
		}
	}
	return nil
}

func (l *Logger) DeleteRelay(rl Relay) error {
	if rl == nil {
		return errors.New("nil relay")
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.ready(); err != nil {
		return err
	}
	for i := len(l.rls) - 1; i >= 0; i-- {
		if l.rls[i] == rl {
			l.rls = append(l.rls[:i], l.rls[i+1:]...)
		}
	}
	return nil
}

func (l *Logger) SetLevelString(s string) error {
	lvl, err := LevelFromString(s)
	if err != nil {
		return err
	}
	return l.SetLevel(lvl)
}

func (l *Logger) SetLevel(lvl Level) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.ready(); err != nil {
		return err
	}
	if !lvl.Valid() {
		return ErrInvalidLevel
	}
	l.lvl = lvl
	return nil
}

func (l *Logger) GetLevel() Level {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.ready(); err != nil {
		return OFF
	}
	return l.lvl
}

func (l *Logger) Debugf(f string, args ...interface{}) error {
	return l.outputf(DefaultDepth, DEBUG, f, args...)
}

func (l *Logger) Infof(f string, args ...interface{}) error {
	return l.outputf(DefaultDepth, INFO, f, args...)
}

func (l *Logger) Warnf(f string, args ...interface{}) error {
	return l.outputf(DefaultDepth, WARN, f, args...)
}

func (l *Logger) Errorf(f string, args ...interface{}) error {
	return l.outputf(DefaultDepth, ERROR, f, args...)
}

func (l *Logger) Criticalf(f string, args ...interface{}) error {
	return l.outputf(DefaultDepth, CRITICAL, f, args...)
}

func (l *Logger) Fatalf(f string, args ...interface{}) {
	l.outputf(DefaultDepth, FATAL, f, args...)
	os.Exit(-1)
}

// Debug logs a structured line; sds are attached as RFC5424 structured data
// parameters (actor=, remote=, reason=, ...).
func (l *Logger) Debug(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(DefaultDepth, DEBUG, msg, sds...)
}

func (l *Logger) Info(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(DefaultDepth, INFO, msg, sds...)
}

func (l *Logger) Warn(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(DefaultDepth, WARN, msg, sds...)
}

func (l *Logger) Error(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(DefaultDepth, ERROR, msg, sds...)
}

func (l *Logger) Critical(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(DefaultDepth, CRITICAL, msg, sds...)
}

func (l *Logger) Fatal(msg string, sds ...rfc5424.SDParam) {
	l.outputStructured(DefaultDepth, FATAL, msg, sds...)
	os.Exit(-1)
}

func (l *Logger) outputf(depth int, lvl Level, f string, args ...interface{}) (err error) {
	if l.lvl == OFF || lvl < l.lvl {
		return
	}
	ts := time.Now()
	ln := strings.TrimRight(l.genOutputf(ts, CallLoc(depth), lvl, f, args...), "\n\t\r")
	return l.writeOutput(ts, ln)
}

func (l *Logger) outputStructured(depth int, lvl Level, msg string, sds ...rfc5424.SDParam) (err error) {
	if l.lvl == OFF || lvl < l.lvl {
		return
	}
	ts := time.Now()
	ln := strings.TrimRight(l.genRfcOutput(ts, CallLoc(depth), lvl, msg, sds...), "\n\t\r")
	return l.writeOutput(ts, ln)
}

func (l *Logger) writeOutput(ts time.Time, ln string) (err error) {
	l.mtx.Lock()
	if err = l.ready(); err == nil {
		for _, w := range l.wtrs {
			if _, lerr := io.WriteString(w, ln); lerr != nil {
				err = lerr
			} else if _, lerr = io.WriteString(w, "\n"); lerr != nil {
				err = lerr
			}
		}
		for _, r := range l.rls {
			if lerr := r.WriteLog(ts, []byte(ln)); lerr != nil {
				err = lerr
			}
		}
	}
	l.mtx.Unlock()
	return
}

func (l *Logger) genOutputf(ts time.Time, pfx string, lvl Level, f string, args ...interface{}) string {
	if l.raw {
		return l.genRawOutput(ts, pfx, lvl, f, args...)
	}
	return l.genRfcOutput(ts, pfx, lvl, fmt.Sprintf(f, args...))
}

func (l *Logger) genRfcOutput(ts time.Time, pfx string, lvl Level, msg string, sds ...rfc5424.SDParam) (ln string) {
	if b, err := GenRFCMessage(ts, lvl.priority(), l.hostname, l.appname, pfx, msg, sds...); err == nil && len(b) > 0 {
		ln = string(b)
	}
	return
}

// GenRFCMessage assembles and marshals an RFC5424 syslog message.
//
// Field length limits per https://www.rfc-editor.org/rfc/rfc5424.html#section-6.2.7:
// AppName 48, MsgID 32, Hostname 255.
func GenRFCMessage(ts time.Time, prio rfc5424.Priority, hostname, appname, msgid, msg string, sds ...rfc5424.SDParam) ([]byte, error) {
	m := rfc5424.Message{
		Priority:  prio,
		Timestamp: ts,
		Hostname:  trimLength(maxHostname, hostname),
		AppName:   trimLength(maxAppname, appname),
		MessageID: trimPathLength(32, msgid),
		Message:   []byte(msg),
	}
	if len(sds) > 0 {
		m.StructuredData = []rfc5424.StructuredData{
			{ID: DefaultID, Parameters: sds},
		}
	}
	return m.MarshalBinary()
}

func (l *Logger) genRawOutput(ts time.Time, pfx string, lvl Level, f string, args ...interface{}) (ln string) {
	return ts.UTC().Format(time.RFC3339) + " " + pfx + " " + lvl.String() + " " + fmt.Sprintf(f, args...)
}

// Write implements io.Writer so the logger can back a standard library *log.Logger.
func (l *Logger) Write(b []byte) (n int, err error) {
	l.mtx.Lock()
	if err = l.ready(); err == nil {
		n = len(b)
		for _, w := range l.wtrs {
			if _, lerr := w.Write(b); lerr != nil {
				err = lerr
			}
		}
	}
	l.mtx.Unlock()
	return
}

func (l Level) String() string {
	switch l {
	case OFF:
		return `OFF`
	case DEBUG:
		return `DEBUG`
	case INFO:
		return `INFO`
	case WARN:
		return `WARN`
	case ERROR:
		return `ERROR`
	case CRITICAL:
		return `CRITICAL`
	case FATAL:
		return `FATAL`
	}
	return `UNKNOWN`
}

func (l Level) Valid() bool {
	switch l {
	case OFF, DEBUG, INFO, WARN, ERROR, CRITICAL, FATAL:
		return true
	}
	return false
}

func (l Level) priority() rfc5424.Priority {
	switch l {
	case OFF:
		return 0
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case INFO:
		return rfc5424.User | rfc5424.Info
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	case CRITICAL:
		return rfc5424.User | rfc5424.Crit
	case FATAL:
		return rfc5424.User | rfc5424.Emergency
	}
	return rfc5424.User | rfc5424.Debug
}

func LevelFromString(s string) (l Level, err error) {
	switch strings.ToUpper(s) {
	case `OFF`:
		l = OFF
	case `DEBUG`:
		l = DEBUG
	case `INFO`:
		l = INFO
	case `WARN`:
		l = WARN
	case `ERROR`:
		l = ERROR
	case `CRITICAL`:
		l = CRITICAL
	case `FATAL`:
		l = FATAL
	default:
		err = ErrInvalidLevel
	}
	return
}

// KV builds an RFC5424 structured data parameter, the audit-log equivalent
// of a key=value pair (actor, remote, reason, tag, ...).
func KV(name string, value interface{}) (r rfc5424.SDParam) {
	r.Name = name
	switch v := value.(type) {
	case string:
		r.Value = v
	default:
		r.Value = fmt.Sprintf("%v", v)
	}
	return
}

func KVErr(err error) rfc5424.SDParam {
	return KV("error", err)
}

type discardCloser bool

func (dc discardCloser) Write(b []byte) (int, error) { return len(b), nil }
func (dc discardCloser) Close() error                { return nil }

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// CallLoc formats the caller's file:line at the given stack depth, used as
// the RFC5424 MSGID field so log lines can be traced back to source.
func CallLoc(callDepth int) (s string) {
	if _, file, line, ok := runtime.Caller(callDepth); ok {
		dir, file := filepath.Split(file)
		file = filepath.Join(filepath.Base(dir), file)
		s = fmt.Sprintf("%s:%d", file, line)
	}
	return
}

func checkName(v string) (err error) {
	for _, r := range v {
		if r >= 'a' && r <= 'z' {
			continue
		} else if r >= 'A' && r <= 'Z' {
			continue
		} else if r == '.' || r == '_' || r == '-' || r == ':' {
			continue
		}
		return fmt.Errorf("name character %c is invalid", r)
	}
	return
}

func trimPathLength(i int, input string) string {
	if len(input) <= i {
		return input
	}
	return trimLength(i, filepath.Base(input))
}

func trimLength(i int, input string) string {
	if len(input) <= i {
		return input
	}
	return input[:i]
}
