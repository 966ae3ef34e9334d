// Package config loads the xyz configuration.
//
// Values are layered, later sources winning: built-in defaults, an optional
// YAML file (xyz.yaml in the working directory unless a path is given), a
// .env file and finally environment variables prefixed with XYZ_, for
// example XYZ_BACKEND_PROVIDER or XYZ_RETRY_MAX_ATTEMPTS. The conventional
// OPENAI_API_KEY, ANTHROPIC_API_KEY and NETMIND_POWER_KEY variables supply
// the API key when none is configured explicitly.
package config
