// Package config holds the user-editable settings: the remote parser
// credentials and the WebDAV backup location.
//
// Settings live in a YAML file (see DefaultPath) and may be overridden per
// process through INTELLITODO_* environment variables. Consumers never cache
// them: they hold a Provider and read Settings() at the moment they need a
// value, so an edit made between two calls takes effect on the second.
package config
