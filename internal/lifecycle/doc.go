// Package lifecycle starts and stops the store daemons around a run.
// The harness core only depends on the Lifecycle interface; EtcdLifecycle
// launches one daemon per node through a Runner with pid files and
// per-node logs, and Nop covers externally managed clusters and tests.
package lifecycle
