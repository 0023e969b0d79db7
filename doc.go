/*
Package cardsort drives a trading card sorting machine.

A stack of cards sits in a hopper. For every card the machine runs one cycle:
three stepper motors feed a single card to the camera position, an external
recognizer identifies it, the routing engine picks one of ten bins from the
operator's criteria and a set of servos drops the card into that bin.

# Architecture

The repository follows a hexagonal layout:

  - pkg/domain holds the entities (cards, criteria, counters, feed phases, events).
  - pkg/ports declares what the core needs from the outside (board, recognizer, stores).
  - pkg/feed, pkg/routing, pkg/dispense and pkg/sorter are the core.
  - pkg/adapters implements the ports: pigpiod, files, Redis, SQLite, MQTT, HTTP and
    an in-memory simulation of the whole machine.

# Usage

The cardsort command wires everything from a YAML configuration:

	cardsort serve --config machine.yaml
	cardsort serve --simulate
	cardsort feed
	cardsort dispense --bin 3
	cardsort route --card card.json

Sorting starts with POST /sorting/start and stops with POST /sorting/stop.
*/
package cardsort

// Version is the release version, set at build time with
// -ldflags "-X github.com/aretw0/cardsort.Version=...".
var Version = "dev"
