// Package confloader loads kraken configuration and watches files.
//
// Sources are applied in this order, later ones overriding earlier ones:
//
//  1. the defaults already present in the target struct
//  2. a YAML file
//  3. KRAKEN_ environment variables (KRAKEN_DATA_BASE_PATH -> data.base_path)
//  4. explicit overrides passed to LoadMap, typically command line flags
//
// Watcher reports changes to individual files, or to anything inside a
// watched directory. It backs the base extract reload trigger.
package confloader
