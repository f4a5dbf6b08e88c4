package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// JobsLoggerName names the logger used by template resync jobs.
const JobsLoggerName = "channels.jobs"

// JobLoggers pairs the glog logger given to the resync scheduler and worker
// with the go-job bridges for the queue runtime that drives them.
type JobLoggers struct {
	Provider    glog.LoggerProvider
	Logger      glog.Logger
	JobProvider job.LoggerProvider
	JobLogger   job.Logger
}

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveJobLoggers resolves the jobs logger and its go-job equivalents.
func ResolveJobLoggers(provider glog.LoggerProvider, logger glog.Logger) JobLoggers {
	resolvedProvider, resolvedLogger := Resolve(JobsLoggerName, provider, logger)
	return JobLoggers{
		Provider:    resolvedProvider,
		Logger:      glog.Ensure(resolvedLogger),
		JobProvider: ToJobProvider(resolvedProvider),
		JobLogger:   ToJobLogger(resolvedLogger),
	}
}
