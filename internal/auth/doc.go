// Package auth manages the OAuth credential lifecycle for multiple Gmail
// accounts.
//
// It maintains a persisted registry of signed-in accounts (accounts.json),
// one token file per account, and a pointer to the active account. The
// Resolver is the composition root: callers ask it for an authorized HTTP
// client and it loads, refreshes, or (when no usable credential exists)
// acquires a credential by running the interactive authorization flow on a
// background goroutine. At most one flow runs at a time; callers that hit a
// running flow are told to retry later instead of blocking.
//
// All persisted state is re-read on every operation. External processes may
// delete token files or rewrite the registry at any time; the package
// self-heals by dropping registry entries whose token file is missing or
// unreadable.
package auth
