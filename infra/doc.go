// Package infra holds the technical adapters of the parking service: the
// MQTT transport for decisions and sensor feeds, the Prometheus and InfluxDB
// metrics exporters, the SQLite KPI store and Sentry error monitoring. These
// packages depend only on the interfaces defined under core.
package infra
