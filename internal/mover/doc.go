// Package mover implements the directory pipeline that drives the dedup engine.
//
// A pass enumerates every regular file under the source directory and handles
// each one independently:
//
//   - busy or vanished files are skipped and picked up by a later pass
//   - a name already present in the destination is a collision and is quarantined
//   - XML records are parsed, disambiguated and written patched to the destination
//   - anything that cannot be patched is moved to the destination unmodified
//   - anything that cannot be moved is quarantined in the error directory under
//     a suffixed name
//
// Destination and quarantine names are flat: only the base name of the source
// file is kept. Relocation never replaces an existing file.
//
// Only one pass runs at a time. A pass started while another holds the permit
// returns immediately without doing anything.
package mover
