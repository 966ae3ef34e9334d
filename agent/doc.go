// Package agent contains the concrete agent building blocks of xyz.
//
// The package focuses on three concerns:
//
//  1. Identity, configuration record and sub-agent ownership (BaseAgent)
//  2. Wrapping plain functions as agents (FuncAgent)
//  3. Template driven model calls (LLMAgent)
//
// BaseAgent deliberately does not implement core.Agent: embed it and supply a
// Flowing method. Sub-agents are registered explicitly with AddSubAgent under
// a key; a child embedding BaseAgent can belong to one parent only. The
// ordered registration list is what core.Structure walks when it prints an
// agent tree.
//
// LLMAgent resolves its template against the call arguments, prepends any
// explicit messages and dispatches through a Completer, usually a
// *transport.Client. Three argument keys are reserved: "messages", "tools"
// and "images".
package agent
