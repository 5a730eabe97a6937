// Package orchestrator runs conversational turns with or without memory.
//
// # Overview
//
// HandleTurn is the single entry point for the HTTP shell. A memory turn
// resolves the caller's session, opens a scope bound to that session's
// entity, dispatches the prompt and waits on the augmentation barrier
// before returning. A bare turn builds a provider handle and calls it
// directly; it never touches the memory engine.
//
// # Errors
//
// Every failure, panics included, leaves HandleTurn as a *Failure with a
// Kind the caller can map to a status code:
//
//	KindInvalidInput   empty or whitespace-only text
//	KindConfiguration  unknown backend or missing credential
//	KindProvider       the model call failed
//	KindScopeClosed    a turn on a closed scope
//	KindInternal       anything else
//
// A bounded barrier that expires is not a failure. It is reported in
// Result.Warnings.
//
// # Conversations
//
// OpenConversation keeps one scope for a whole CLI session and runs the
// barrier once, on Close. Compare runs a memory and a bare turn for the
// same session concurrently.
package orchestrator
