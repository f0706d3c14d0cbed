// Package project persists video projects and their scenes in SQLite and
// defines the lifecycle statuses a project moves through.
//
// The Store owns schema initialization, CRUD, compare-and-set status
// transitions, and recovery of renders abandoned by a dead process. Scenes
// live in their own table and are removed with their project through a
// cascading foreign key. Scripts are stored as JSON on the project row.
//
// The transition table in models.go is the single source of truth for which
// status changes are legal; higher layers check it before persisting and the
// Store refuses compare-and-set moves it does not list. Schema changes bump
// schemaVersion in schema.go, which is kept in SQLite's user_version.
package project
