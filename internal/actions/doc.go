// Package actions speaks the GitHub Actions runner protocol: step outputs are
// appended to the $GITHUB_OUTPUT file, secrets are masked, and failures are
// annotated through workflow commands on standard output.
//
// Outside of a runner step outputs degrade to plain text on standard error so
// the binary remains usable from a terminal and standard output stays free for
// the run report.
package actions
