// Package testutil contains helper builders and a configurable stub runtime
// used across tests to reduce boilerplate when constructing memories,
// characters and capability fixtures. They are not intended for production
// usage.
package testutil
