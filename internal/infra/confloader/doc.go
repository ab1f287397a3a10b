// Package confloader loads configuration with koanf and watches the
// configuration file for changes.
//
// Sources, lowest priority first:
//
//  1. Values already present in the target struct (defaults)
//  2. The YAML configuration file
//  3. Environment variables (ABOOK_ prefix, "__" between levels)
//  4. Maps loaded with LoadMap (flags, tests)
//
// A double underscore separates nesting levels so that keys containing a
// single underscore survive: ABOOK_SERVER__HTTP__MAX_BODY_BYTES maps to
// server.http.max_body_bytes.
package confloader
