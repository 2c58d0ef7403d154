// Package sessions tracks, per connection, which form the client is
// currently allowed to answer.
//
// A Session holds at most one outstanding form ID. The guard sets it when a
// form request is handed to the transport and clears it on every exit path
// of the reply: a matching reply, a mismatched reply, an unauthorized packet
// or an explicit abort. Clearing is idempotent.
//
// Sessions live in a Store keyed by connection ID. Transports call Open on
// connect and Remove on disconnect; Get creates a session lazily for
// callers that cannot observe the connect event.
//
//	store := sessions.NewStore()
//	sess := store.Open(conn.ID())
//	sess.SetCurrentFormID(7)
//	if sess.Resolve(7) {
//		// reply for form 7 accepted; the session is clear again
//	}
package sessions
