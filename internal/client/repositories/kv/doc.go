// Package kv is the durable on-device key-value store used by the session
// and task services.
//
// Keys are plain strings; values are opaque bytes. Callers serialise their
// own values (the services store JSON). Two implementations are provided:
//
//   - SQLiteStore keeps every pair in the kv table of the local database.
//     MultiSet and MultiRemove run in one transaction, so they are all-or-nothing.
//   - SealedStore decorates another Store and encrypts values with AES-GCM
//     under a key derived from a device secret (see cryptox).
//
// Get reports absence with ok == false rather than an error.
package kv
