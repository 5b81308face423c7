// Package dispatch runs commands against inventory hosts.
//
// A [Command] is built structurally with [Cmd] (an argument vector, never
// passed through a shell) or [Sh] (an explicit shell script). The
// [Dispatcher] executes it as a local subprocess when the host's platform is
// local and over a remote [Session] otherwise; that is the only branch on
// platform. Escalated commands are wrapped in sudo, fed the become password
// on stdin when one is configured.
//
// Run never returns an error and never panics. Every outcome, including
// transport failures and timeouts, is folded into a [Result].
package dispatch
