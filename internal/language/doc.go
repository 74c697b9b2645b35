// Package language normalizes language codes and transcription hints.
//
// A small built-in table maps ISO 639-1, ISO 639-2, and English word forms to
// one another; anything else is resolved with golang.org/x/text/language.
package language
