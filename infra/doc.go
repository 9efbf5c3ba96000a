// Package infra contains technical adapters such as the SQLite and file
// stores, the weather and baseline readers, the MQTT publisher and the
// metrics exporters. These packages should depend only on the interfaces
// defined in the core packages.
package infra
