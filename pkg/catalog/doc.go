// Package catalog provides the static registry of supported effects and
// their parameter schemas.
package catalog
