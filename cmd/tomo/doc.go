// Command tomo is a pomodoro timer that keeps its session history in a
// local SQLite database.
//
// Usage:
//
//	tomo [start] [--work <dur>] [--short-break <dur>] [--long-break <dur>]
//	             [--intervals <n>] [--detach] [--no-notify]
//	tomo pause
//	tomo resume
//	tomo reset
//	tomo stats  [--range <window>]
//	tomo export [--range <window>] [--out <path>] [--format json|cbor]
//	tomo import <path>
//	tomo config [<key> [<value>]]
//
// start runs a foreground countdown unless --detach is given. The
// countdown reads single-letter lines from stdin: p pauses or resumes,
// r resets, f finishes the session after the current break, q quits
// leaving the timer running. A detached timer is picked up again by
// the next start, or steered headless with pause, resume, and reset.
//
// Durations accept Go syntax ("25m", "1h30m") or bare minutes ("25");
// --break is an alias for --short-break. Windows are today, week,
// month, all, or a lookback such as "7d".
//
// Exit codes are stable:
//
//	0  success
//	1  unexpected error
//	2  command not valid for the current phase
//	3  storage failure
//	4  export failure
//	5  invalid configuration
package main
