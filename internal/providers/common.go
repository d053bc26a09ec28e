package providers

import "time"

type Config struct {
	AWS struct {
		Region                string `yaml:"region"`
		AccessKeyID           string `yaml:"access_key_id"`
		SecretAccessKey       string `yaml:"secret_access_key"`
		SessionToken          string `yaml:"session_token"`
		UseDefaultCredentials bool   `yaml:"use_default_credentials"`
		Endpoint              string `yaml:"endpoint"`
	} `yaml:"aws"`
	Application struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Bucket      string `yaml:"bucket"`
		Version     string `yaml:"version"`
		Metadata    string `yaml:"metadata"`
	} `yaml:"application"`
	Deploy struct {
		Timestamp     *bool `yaml:"timestamp"`
		WaitForDeploy *bool `yaml:"wait_for_deploy"`
		// Durations are written as Go duration strings, e.g. "1500ms" or "2m".
		PollInterval time.Duration `yaml:"poll_interval"`
		Timeout      time.Duration `yaml:"timeout"`
		OnlyOnChange bool          `yaml:"only_on_change"`
	} `yaml:"deploy"`
	History struct {
		Path     string `yaml:"path"`
		Disabled bool   `yaml:"disabled"`
	} `yaml:"history"`
}
