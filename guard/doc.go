// Package guard enforces the form session protocol on every connection.
//
// A single Guard is shared by all connections. The transport calls
// HandleInbound for every packet a client sends, before any other consumer
// sees it, and honours the returned Verdict. Forms are sent with SendForm,
// which runs the outbound rules and registers the form on the connection.
//
// Rules, per connection:
//
//   - A form reply is always consumed by the guard. Its form ID must equal
//     the session's current form ID; otherwise it is a protocol violation.
//     A matching reply is decoded and handed to the form, and the session
//     is cleared whatever the outcome.
//   - While a form is outstanding, any other packet not permitted by the
//     policy's Filter is cancelled, the session is reset and a violation
//     is reported.
//   - Sending a form while another is outstanding first closes every form
//     on the client, then records the new ID, then drops the connection's
//     pending-form registry.
//
// Violations go to the configured reporter.Reporter. The policy's Action
// decides whether the offending connection is kept or disconnected.
package guard
