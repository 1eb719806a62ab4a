// Package all registers every storage backend with the storage factory, and
// registers the "sqlserver" driver the mssql backend relies on.
//
// Binaries blank-import this package; config selects which backend runs.
package all

import (
	_ "github.com/microsoft/go-mssqldb"

	_ "xmlstage/internal/storage/mssql"
	_ "xmlstage/internal/storage/postgres"
	_ "xmlstage/internal/storage/sqlite"
)
