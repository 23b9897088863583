package runloop

import "time"

// armCallbackTimeout starts the per-callback deadline timer described in §6
// ("Optional callback-timeout watchdog"). It is a thin wrapper around
// time.AfterFunc rather than a dedicated polling goroutine: each in-flight
// callback gets its own timer, so arming and disarming never contends on a
// shared data structure, unlike the teacher's lifecycle.go deadline guard
// which served a single long-lived operation instead of many concurrent
// short-lived ones.
func armCallbackTimeout(handle *CallbackHandle, timeoutMs int64) *time.Timer {
	if timeoutMs <= 0 {
		return nil
	}
	return time.AfterFunc(time.Duration(timeoutMs)*time.Millisecond, handle.timeoutFire)
}
