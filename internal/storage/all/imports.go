// Package all wires all built-in storage backends into the storage factory.
//
// Importing it (even as a blank import) runs the init functions of each
// backend, making these kinds available to storage.New:
//
//   - "mysql"  (svload/internal/storage/mysql)
//   - "sqlite" (svload/internal/storage/sqlite)
package all

import (
	_ "svload/internal/storage/mysql"
	_ "svload/internal/storage/sqlite"
)
