// Package errors - error hook registration
package errors

import "sync"

// ErrorHook is a callback invoked for every enhanced error built while
// reporting is active. Hooks run synchronously on the error path, so
// implementations must be fast and must not block.
type ErrorHook func(*EnhancedError)

var (
	errorHooksMu sync.RWMutex
	errorHooks   []ErrorHook
)

// AddErrorHook registers a hook that receives every enhanced error.
// Registering a hook enables the full (detecting) build path.
func AddErrorHook(hook ErrorHook) {
	if hook == nil {
		return
	}
	errorHooksMu.Lock()
	errorHooks = append(errorHooks, hook)
	errorHooksMu.Unlock()
	updateActiveReporting()
}

// ClearErrorHooks removes all registered hooks.
func ClearErrorHooks() {
	errorHooksMu.Lock()
	errorHooks = nil
	errorHooksMu.Unlock()
	updateActiveReporting()
}

// notifyErrorHooks invokes all registered hooks with the error
func notifyErrorHooks(ee *EnhancedError) {
	errorHooksMu.RLock()
	hooks := errorHooks
	errorHooksMu.RUnlock()

	for _, hook := range hooks {
		hook(ee)
	}
}

// updateActiveReporting recomputes the fast-path gate after a reporter or
// hook change. hasActiveReporting is true when at least one consumer will
// see built errors.
func updateActiveReporting() {
	reporterActive := globalTelemetryReporter != nil && globalTelemetryReporter.IsEnabled()

	errorHooksMu.RLock()
	hooksActive := len(errorHooks) > 0
	errorHooksMu.RUnlock()

	hasActiveReporting.Store(reporterActive || hooksActive)
}
