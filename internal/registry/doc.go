// Package registry holds the route table that maps positions in the dialog
// graph to handler descriptors.
//
// Application code assembles a Table once at startup, either directly through
// Register and Include or by handing Modules to Build. The finished table is
// passed to the dispatcher and is never written to afterwards, so lookups need
// no locking.
package registry
