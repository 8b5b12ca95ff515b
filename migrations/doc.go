// Package migrations registers the application's Go migrations with
// migrate.Default. Importing it for side effects is enough:
//
//	import _ "db_schema_migrator/migrations"
//
// SQL migrations live next to these files and are read at run time.
package migrations
