// Package files stores file attachments across the local storage tier.
//
// Each file is split into two entries that share an ID:
//
//   - a FileRecord in the registry object stored under RegistryKey
//   - the payload, a base64 data URL stored under the ID itself
//
// The two writes cannot share a transaction, so the Manager writes the
// payload first and the registry entry second, deleting the payload again if
// the registry write fails. Registry entries whose payload has gone missing
// are pruned when files are listed.
package files
