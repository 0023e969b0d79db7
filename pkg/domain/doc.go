/*
Package domain contains the core domain models of the card sorter.

It defines the entities shared by the feed, routing, dispense and sorter packages:
sensor levels, identified cards, the ten-slot criteria table, the durable counters and
the lifecycle events emitted while a card travels through a cycle. This package is kept
pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - SensorReading: A single poll of a feed sensor (pin, raw level, triggered).
  - Card / Identification: The result of the external recognizer for one cycle.
  - BinCriteria / CriteriaTable: Operator-defined filters for bins 1 through 10.
  - Counters: Lifetime, monthly and failed-identification totals.
  - FeedPhase: The states of the feed sequencer.
*/
package domain
