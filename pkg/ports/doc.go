/*
Package ports defines the driven ports (interfaces) of the card sorter.

These interfaces decouple the feed, dispense and sorter logic from hardware, storage and
recognition implementations, so the same sequencers run against a pigpio daemon, a
simulated board or a test double.

# Key Interfaces

  - Board: Digital read/write, stepper pattern output and servo positioning.
  - Identifier: The external card recognizer, one blocking call per cycle.
  - CounterStore / CriteriaStore: Durable counters and the ten-slot criteria table.
  - CardArchive / ArtifactStore: Record sink for identified cards and capture artifacts.
  - EventPublisher: Fan-out of cycle events to external listeners.
*/
package ports
