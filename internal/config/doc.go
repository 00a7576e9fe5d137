// Package config loads, normalizes, and validates tunevault configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a neighbouring .env file, and honours
// environment fallbacks such as MUSIC_DIR, PLEX_URL and PLEX_TOKEN. The Config
// type centralizes every knob the daemon and CLI need, so the music library,
// download scratch space, queue concurrency and external service credentials
// are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
