// Package auth provides the optional API key middleware for the REST surface.
package auth
