// Package core provides the foundational contracts and domain types of xyz:
//
//   - Agent (a callable unit with one processing operation, Flowing)
//   - Information (the OpenAI function-call shaped configuration record)
//   - Message / Part (role-tagged prompt fragments, text or multi-part)
//   - FunctionCall / ToolCall (tool invocations proposed by a backend)
//   - the error taxonomy shared by the template, transport and agent layers
//
// The package keeps implementation concerns (templating, transport, concrete
// agents) out of scope and exposes small types so that every layer can depend
// on it without import cycles.
package core
