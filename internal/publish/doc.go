// Package publish commits detected manifest changes on the head branch, pushes
// the branch, and opens the pull request against the base branch.
//
// Two push strategies exist. PushStrategyForce overwrites the remote head
// branch; the branch belongs to the automation and was just rebuilt from the
// base branch, so nothing but a previous automated commit is replaced. Commits
// pushed to the head branch by people are lost under this strategy.
// PushStrategyRebase never rewrites the remote branch: a rejected push is
// followed by a fetch and rebase onto the remote base branch before the next
// attempt. It cannot converge when the remote head branch still carries an
// earlier automated commit, in which case the attempts run out and the push fails.
package publish
