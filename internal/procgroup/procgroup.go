// SPDX-License-Identifier: MIT

// Package procgroup starts subprocesses in their own process group so that
// the entire tree (transcoder plus any helpers it forks) can be reaped in
// one signal.
package procgroup
