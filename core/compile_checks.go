package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ ReauthorizationTracker = (*MemoryReauthorizationTracker)(nil)
	_ CallbackURLResolver    = FrontendCallbackURLResolver{}
	_ LifecycleHook          = LifecycleHookFunc{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
