// Package internal contains the implementation packages of pageforge.
//
// # Package Organization
//
//   - types: collaborator interfaces (source provider, compiler, artifact)
//   - source: afero-backed page sources with blake3 content hashes
//   - compiler: extension dispatch over the gotmpl, markdown and templc compilers
//   - registry: page entries, their compile state machine and the view index
//   - resolver: request descriptor to page path resolution
//   - build: the compile-once cache and the precompilation scheduler
//   - renderer: iterative layout composition
//   - scanner: startup registration of every page source
//   - watcher: debounced fsnotify change detection
//   - pages: the engine facade wiring all of the above
//   - server: HTTP transport with a live reload feed
//   - services: command orchestration (build, serve, init)
//   - config, logging, errors, monitoring, version: ambient concerns
//
// # Concurrency
//
// Each page entry carries its own lock; a page is compiled by exactly one
// goroutine while concurrent callers for the same page wait and then share
// the result. Registry indexes sit behind a read/write mutex and no code
// path holds two entry locks at once.
//
// # Inter-Package Communication
//
//   - Scanner and change handling populate the registry
//   - Registry events feed the server's live reload hub
//   - Watcher events reach the engine through pages.Engine.HandleChanges
//   - Compiled artifacts are cached on their registry entry, never globally
package internal
