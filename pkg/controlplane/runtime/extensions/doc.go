// Package extensions provides extension lifecycle management.
//
// The Service keeps the persisted enabled flag of every registered
// extension in step with what is loaded in the process, provisions media
// directories and publishes ExtEnabled / ExtDisabled.
package extensions
