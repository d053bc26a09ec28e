package api

// v0 contains public types for deployment history consumers.

type DeploymentStatus string

const (
	DeployRunning   DeploymentStatus = "running"
	DeploySucceeded DeploymentStatus = "succeeded"
	// DeployUnverified means the update was applied but health could not be awaited.
	DeployUnverified DeploymentStatus = "unverified"
	DeployFailed     DeploymentStatus = "failed"
)

type Deployment struct {
	ID           string           `json:"id" yaml:"id"`
	Application  string           `json:"application" yaml:"application"`
	Environment  string           `json:"environment" yaml:"environment"`
	VersionLabel string           `json:"version_label" yaml:"version_label"`
	Bucket       string           `json:"bucket" yaml:"bucket"`
	Key          string           `json:"key" yaml:"key"`
	Status       DeploymentStatus `json:"status" yaml:"status"`
	Error        string           `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt    int64            `json:"started_at" yaml:"started_at"`
	FinishedAt   int64            `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

type Transition struct {
	Seq            int    `json:"seq" yaml:"seq"`
	PreviousHealth string `json:"previous_health" yaml:"previous_health"`
	PreviousStatus string `json:"previous_status" yaml:"previous_status"`
	Health         string `json:"health" yaml:"health"`
	Status         string `json:"status" yaml:"status"`
	Color          string `json:"color" yaml:"color"`
	ObservedAt     int64  `json:"observed_at" yaml:"observed_at"`
}
