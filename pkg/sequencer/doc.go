// Package sequencer orders processing submissions for one session.
//
// Every submission mints a token one greater than the last. When a response
// arrives the token is compared with the newest one minted; only the newest
// may change the preview or the processing state. Older responses are
// dropped without side effects, so the last submission always wins no matter
// in which order the network delivers them.
package sequencer
