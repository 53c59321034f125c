// Package settings exposes the runtime settings, object grants and the
// administrative history to superusers.
package settings
