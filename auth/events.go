package auth

import (
	"time"

	"github.com/jrsteele09/voter-registration/identity"
)

// handleEvent applies the auth-state change policy. It runs on the identity
// service's goroutine and never blocks on remote calls.
func (r *Reconciler) handleEvent(event identity.Event, session *identity.Session) {
	r.metrics.RecordEvent(string(event))

	switch event {
	case identity.EventTokenRefreshed:
		return
	case identity.EventUserUpdated:
		// A password rotation follows: sign-out then sign-in.
		r.enterPasswordFlow()
		return
	case identity.EventSignedOut:
		if r.inPasswordFlow() {
			r.logger.Debug().Msg("ignoring sign-out during password update")
			return
		}
		r.clear()
		return
	case identity.EventSignedIn:
		r.leavePasswordFlow()
	}

	r.schedule(session)
}

// schedule (re)arms the debounce timer. Only the latest session is reconciled.
func (r *Reconciler) schedule(session *identity.Session) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return
	}
	r.stopTimer()
	r.pending = session
	gen := r.timerGen
	r.timer = time.AfterFunc(r.debounce, func() { r.flush(gen) })
}

func (r *Reconciler) flush(gen uint64) {
	r.lock.Lock()
	if gen != r.timerGen || r.closed {
		r.lock.Unlock()
		return
	}
	session := r.pending
	r.pending = nil
	r.timer = nil
	r.timerGen++
	r.lock.Unlock()

	r.Reconcile(r.ctx, session)
}

// stopTimer cancels the pending pass. A timer that already fired sees a newer
// generation and does nothing. Caller holds the lock.
func (r *Reconciler) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = nil
	r.timerGen++
}
