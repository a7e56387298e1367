// Package app wires the bot together: it loads the bot configuration, builds
// the route table from the compiled-in modules, picks the session store and
// the event transport, and runs the dispatcher until the transport ends or
// the context is cancelled. It is decoupled from any specific entrypoint.
package app
