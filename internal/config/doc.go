// Package config loads, normalizes, and validates captioner configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment fallbacks such as DEEPGRAM_API_KEY and
// MEDIA_ROOT. The resulting Config is built once at startup and handed to the
// discovery, pipeline, and batch constructors; nothing below this package
// reads the environment.
package config
