// Package config provides configuration management for Claw Manager.
//
// Two documents are handled here:
//
//   - Config: the manager's own YAML settings in ~/.config/claw-manager/config.yaml
//     (install paths, probe host, notification and watcher switches, timings).
//   - Document: the gateway's openclaw.json, owned by the gateway but read and
//     written through Store. Only gateway.port and gateway.auth.token are
//     interpreted; every other key is carried through untouched.
//
// Watcher observes the gateway document and reports reloaded contents so the
// application can decide whether the running gateway needs a restart.
package config
