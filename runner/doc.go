// Package runner drives a conversational turn through the runtime.
//
// For each incoming message the Runner stores the message, composes state,
// renders the character's message template against the state values and
// asks the response model for a JSON object of the form
//
//	{"thought": "...", "text": "...", "actions": ["REPLY"]}
//
// The parsed response is stored and handed to the action dispatcher;
// evaluators run afterwards. RUN_STARTED, MESSAGE_RECEIVED, MESSAGE_SENT and
// RUN_ENDED are emitted along the way.
//
// HandleMessage is synchronous. Run streams the content sent during the turn
// and can be cancelled by run id.
package runner
