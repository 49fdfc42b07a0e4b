// Package memory provides in-process stores for development and tests: site
// records, submissions and archived page blobs.
package memory
