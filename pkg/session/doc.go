/*
Package session manages the editing sessions of a server process.

Each session owns one retrofx.Editor. The Manager serializes operations per
session, optionally across replicas through a distributed locker, and
mirrors every snapshot into a SessionStore so sessions can be listed and
inspected from outside the process. Destroying a session deletes its
snapshot; nothing outlives the session.
*/
package session
