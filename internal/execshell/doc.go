// Package execshell provides structured helpers for invoking external tools.
//
// ShellExecutor wraps a CommandRunner with lifecycle notifications, optional
// per-command timeouts, and typed failures. OSCommandRunner is the default
// os/exec backed runner. Every command is bound to an explicit working
// directory; the executor refuses to run anything in the ambient directory.
package execshell
