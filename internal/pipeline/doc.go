// Package pipeline implements the investigation workflow that runs once per
// dequeued task: Investigator (concurrent context gathering with per-call
// fallbacks), Reflector (LLM risk classification with a deterministic
// fallback), and a conditional Communicator (message generation, push
// dispatch, audit logging). The workflow is an explicit state machine with a
// single conditional edge after the Reflector; no stage is retried and every
// external failure degrades to a local fallback value.
package pipeline
