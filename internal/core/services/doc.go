// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The conversational pipeline lives here: route classification,
// hybrid retrieval with rank fusion, the per-turn state machine,
// the resumable embedding loop, and document ingestion.
package services
