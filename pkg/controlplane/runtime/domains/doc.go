// Package domains manages hosted mail domains and domain aliases.
package domains
