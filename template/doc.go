// Package template implements the prompt template engine: an ordered list of
// role-tagged fragments whose text carries brace-delimited placeholders
// ({name}, with {{ and }} escaping literal braces). Resolving a template
// against a map of values yields the request messages sent to a backend.
//
// Resolution is pure. It works on a deep copy, never mutates the template and
// fails as a whole, naming every unresolved placeholder, when a value is
// missing. Extra values are ignored so optional context can be passed through
// uniformly.
package template
