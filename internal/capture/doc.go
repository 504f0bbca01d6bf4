// Package capture acquires frames from configured cameras.
//
// Each camera is a FrameSource that owns one backend Handle and a two-state
// connection machine (online/offline). A source never fails a caller: any open
// or read problem flips it offline and GetFrame reports "no frame". Offline
// sources reopen lazily on the next GetFrame, no sooner than the backoff delay
// after the previous attempt.
//
// A Registry polls every source once per cycle in configuration order and
// always returns one Snapshot per source.
package capture
