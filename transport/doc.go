// Package transport sends resolved messages to an LLM backend.
//
// A Client wraps a Backend and owns everything around a single model call:
// merging image references into the last message, choosing the tool mode,
// merging generation parameters and retrying failed attempts with a constant
// interval up to a fixed ceiling. Non-streaming calls return a *Completion.
// Streaming calls return an iter.Seq2 that yields text deltas as they arrive
// and ends when the backend signals a null delta:
//
//	for text, err := range client.StreamRun(ctx, msgs) {
//		if err != nil {
//			return err
//		}
//		fmt.Print(text)
//	}
//
// Breaking out of the loop closes the underlying stream. When every attempt
// fails the terminal error is a *core.TransportError carrying the last
// attempt's diagnostic.
//
// Backends live in sub-packages: transport/openai serves any OpenAI
// compatible endpoint, transport/anthropic the Anthropic Messages API.
package transport
