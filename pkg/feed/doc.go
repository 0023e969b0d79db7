/*
Package feed moves exactly one card from the input hopper to the read station.

Three stepper motors take part in a feed:

  - Entry (motor 1) pulls the bottom card out of the hopper.
  - Pinch (motor 2) pushes it through the pinch point and, reversed, holds back a
    trailing card (anti-double-feed).
  - Transport (motor 3) carries the card to the read station and runs for the whole cycle.

The Sequencer walks the phases Drive, Settle, Reverse, WaitEntryClear and DriveToExit,
gating each on a debounced sensor transition with its own timeout. Every return path
halts all three motors and drives their pins low.
*/
package feed
