// Package textutil turns user-supplied names into values that are safe to
// use in blob keys and download headers.
package textutil
