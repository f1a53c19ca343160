package config

import _ "embed"

// ExampleConfig is written by "blockmind onboard".
//
//go:embed config.example.json
var ExampleConfig []byte
