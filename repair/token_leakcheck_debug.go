//go:build tokenleakcheck

package repair

import "runtime"

// installLeakCheck arms a finalizer that panics if t is garbage
// collected while still unconsumed. Built only under the
// tokenleakcheck tag (for example `go test -tags tokenleakcheck`),
// since panicking finalizers have no place in a production binary.
func installLeakCheck(t *Token) {
	runtime.SetFinalizer(t, func(t *Token) {
		if !t.Consumed() {
			panic("repair: token garbage-collected without being consumed")
		}
	})
}
