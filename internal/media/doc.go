// Package media identifies supported media files and classifies them as TV
// episodes or movies from their location in the library.
//
// Classification happens once, at discovery, and travels with the job so the
// subtitle writer, the keyterm CSV naming, and the LLM prompt all agree on
// what a file is.
package media
