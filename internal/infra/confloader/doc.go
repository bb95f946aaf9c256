// Package confloader loads configuration with koanf.
//
// Sources, highest priority first:
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables with the MIRRORSYNC_ prefix
//  3. A YAML configuration file
//  4. Defaults already present in the target struct
//
// Environment names map to keys by lower-casing and turning each single
// underscore into a level separator. A doubled underscore stands for a
// literal underscore, so MIRRORSYNC_SYNC_DEBOUNCE__WINDOW sets
// sync.debounce_window.
//
// Watcher reports changes to configuration files so long-running processes
// can apply the settings that are safe to change at runtime.
package confloader
