// Package mathagent provides the agents used by the math benchmark harnesses:
// a Solver that asks a model for a step-by-step solution and returns its
// fenced JSON answer block, and an Evaluator that asks a model to grade a
// prediction against the reference answer.
//
// Both are composite agents. They own an agent.LLMAgent as the sub-agent
// "llm" and carry a validated Information record, so core.Structure prints
// the full tree. Their prompts are embedded YAML templates, see Templates.
package mathagent
