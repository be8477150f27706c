// Package config loads client configuration from YAML.
//
// Configuration is read from a YAML file with ${VAR} expansion. A .env file
// next to the config (or in the working directory) is loaded first, and the
// AUCTION_API_URL / AUCTION_WS_URL / BACKEND_URL / BACKEND_WS_URL variables
// override the corresponding URLs.
package config
