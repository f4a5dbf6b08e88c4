package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestResolveDeterministicFallback(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	var resolvedProvider glog.LoggerProvider
	_, resolved := Resolve("channels", provider, loggerOnly)
	got := resolved.(*capturingLogger)
	if got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}

	resolvedProvider, resolved = Resolve("channels", nil, loggerOnly)
	got = resolved.(*capturingLogger)
	if got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if resolvedProvider == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	_, resolved = Resolve("channels", nil, nil)
	if resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestResolveJobLoggersBridgesGoJob(t *testing.T) {
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	loggers := ResolveJobLoggers(provider, nil)
	if loggers.JobProvider == nil {
		t.Fatalf("expected go-job provider bridge")
	}
	if loggers.JobLogger == nil {
		t.Fatalf("expected go-job logger bridge")
	}
	if provider.requested != JobsLoggerName {
		t.Fatalf("expected %q logger to be requested, got %q", JobsLoggerName, provider.requested)
	}

	bridged := loggers.JobProvider.GetLogger(JobsLoggerName)
	bridged.Info("resync queued", "channel_id", "ch_1")

	captured := providerLogger.lastInfo
	if captured.msg != "resync queued" {
		t.Fatalf("expected bridged message, got %q", captured.msg)
	}
	if captured.args[0] != "channel_id" || captured.args[1] != "ch_1" {
		t.Fatalf("expected bridged args, got %#v", captured.args)
	}
}

func TestResolveJobLoggersFallsBackToNop(t *testing.T) {
	loggers := ResolveJobLoggers(nil, nil)
	if loggers.Logger == nil {
		t.Fatalf("expected nop logger fallback")
	}
	loggers.Logger.Info("discarded")
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger    *capturingLogger
	requested string
}

func (p *capturingProvider) GetLogger(name string) glog.Logger {
	if p != nil {
		p.requested = name
	}
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type infoCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id       string
	lastInfo infoCall
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.lastInfo = infoCall{
		msg:  msg,
		args: append([]any(nil), args...),
	}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
