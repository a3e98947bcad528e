// Package config defines configuration structures for the contentbackup CLI.
//
// Configuration can be provided via (later sources win):
//   - YAML configuration file
//   - .env file (loaded into the environment, never overriding it)
//   - Environment variables (SUMO_ACCESS_ID, SUMO_ACCESS_KEY, SUMO_ENDPOINT,
//     and the CONTENTBACKUP_ prefix for everything else)
//   - Command-line flags
//
// # Structure
//
//	type Config struct {
//	    Endpoint     string
//	    AccessID     string
//	    AccessKey    string
//	    AdminMode    bool
//	    Output       string
//	    Bucket       string
//	    BatchSize    int
//	    LaunchDelay  time.Duration
//	    PaceDelay    time.Duration
//	    MaxDepth     int
//	    ObjectKinds  []string
//	    Retry        RetryConfig
//	    ...
//	}
package config
