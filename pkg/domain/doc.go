/*
Package domain contains the core domain models of the RetroFX editor.

It defines the effect schema, the single configured effect instance, the editing
Session with its processing state machine, and the error taxonomy shared by all
adapters. This package is kept pure and free of I/O, following Hexagonal
Architecture principles.

# Key Entities

  - EffectDescriptor: Immutable schema of an effect (id, label, parameter specs).
  - EffectInstance: One configured effect (id + concrete parameter values).
  - Session: Current image reference, the single selection, and the processing state.
  - RequestToken: Monotonic counter ordering processing submissions.
*/
package domain
