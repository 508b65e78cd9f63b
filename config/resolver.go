package config

import (
	"time"

	"github.com/cacheops/cachectl/models"
	resource "k8s.io/apimachinery/pkg/api/resource"
)

// Action is the pipeline entry point being resolved for. Mutating actions
// require the cache credential up front; read-only ones do not.
type Action string

const (
	ActionRender  Action = "render"
	ActionRollout Action = "rollout"
	ActionInspect Action = "inspect"
	ActionDelete  Action = "delete"
)

func (a Action) mutating() bool {
	return a == ActionRollout || a == ActionDelete
}

// clusterDefaults are the per-cluster-type default values applied when
// the operator does not override them.
type clusterDefaults struct {
	Replicas           int
	PersistenceEnabled bool
	StorageClassName   string
	RolloutTimeout     time.Duration
	PollInterval       time.Duration
}

var defaultsByCluster = map[models.ClusterType]clusterDefaults{
	models.ClusterKind: {
		Replicas:           1,
		PersistenceEnabled: false,
		StorageClassName:   "standard",
		RolloutTimeout:     3 * time.Minute,
		PollInterval:       3 * time.Second,
	},
	models.ClusterEKS: {
		Replicas:           3,
		PersistenceEnabled: true,
		StorageClassName:   "cachectl-gp3",
		RolloutTimeout:     10 * time.Minute,
		PollInterval:       5 * time.Second,
	},
}

// Resolve merges environment variables with cluster-type defaults into a
// validated DeploymentConfig. The first invalid field aborts resolution
// with a ConfigurationError; nothing here touches the cluster.
func Resolve(action Action) (models.DeploymentConfig, error) {
	var cfg models.DeploymentConfig

	clusterType := models.ClusterType(GetEnv("CLUSTER_TYPE", string(models.ClusterKind)))
	if !clusterType.Valid() {
		return cfg, &models.ConfigurationError{
			Field:  "CLUSTER_TYPE",
			Reason: "unsupported cluster type " + string(clusterType) + " (expected kind or eks)",
		}
	}
	defaults := defaultsByCluster[clusterType]

	replicas, _, err := GetEnvInt("CACHE_REPLICAS", defaults.Replicas)
	if err != nil {
		return cfg, &models.ConfigurationError{Field: "CACHE_REPLICAS", Reason: "not an integer"}
	}
	if replicas < 1 {
		return cfg, &models.ConfigurationError{Field: "CACHE_REPLICAS", Reason: "must be a positive integer"}
	}

	port, _, err := GetEnvInt("CACHE_PORT", 6379)
	if err != nil || port < 1 || port > 65535 {
		return cfg, &models.ConfigurationError{Field: "CACHE_PORT", Reason: "must be a valid TCP port"}
	}

	persistence, _, err := GetEnvBool("CACHE_PERSISTENCE", defaults.PersistenceEnabled)
	if err != nil {
		return cfg, &models.ConfigurationError{Field: "CACHE_PERSISTENCE", Reason: "not a boolean"}
	}

	// Empty env values fall back to defaults, so volume size and storage
	// class are always non-empty here; only well-formedness needs checking.
	volumeSize := GetEnv("CACHE_VOLUME_SIZE", "1Gi")
	storageClass := GetEnv("STORAGE_CLASS", defaults.StorageClassName)
	if persistence {
		if _, err := resource.ParseQuantity(volumeSize); err != nil {
			return cfg, &models.ConfigurationError{Field: "CACHE_VOLUME_SIZE", Reason: "invalid quantity: " + err.Error()}
		}
	}

	for _, q := range []struct {
		field string
		value string
	}{
		{"CPU_REQUEST", GetEnv("CPU_REQUEST", "100m")},
		{"CPU_LIMIT", GetEnv("CPU_LIMIT", "500m")},
		{"MEMORY_REQUEST", GetEnv("MEMORY_REQUEST", "128Mi")},
		{"MEMORY_LIMIT", GetEnv("MEMORY_LIMIT", "512Mi")},
	} {
		if _, err := resource.ParseQuantity(q.value); err != nil {
			return cfg, &models.ConfigurationError{Field: q.field, Reason: "invalid quantity: " + err.Error()}
		}
	}

	password := GetEnv("CACHE_PASSWORD", "")
	if action.mutating() && password == "" {
		return cfg, &models.ConfigurationError{
			Field:  "CACHE_PASSWORD",
			Reason: "required for " + string(action) + "; refusing to deploy an unauthenticated cache",
		}
	}

	grace, _, err := GetEnvInt("TERMINATION_GRACE_SECONDS", 30)
	if err != nil || grace < 0 {
		return cfg, &models.ConfigurationError{Field: "TERMINATION_GRACE_SECONDS", Reason: "must be a non-negative integer"}
	}

	timeout, err := GetEnvDuration("ROLLOUT_TIMEOUT", defaults.RolloutTimeout)
	if err != nil || timeout <= 0 {
		return cfg, &models.ConfigurationError{Field: "ROLLOUT_TIMEOUT", Reason: "must be a positive duration"}
	}

	interval, err := GetEnvDuration("POLL_INTERVAL", defaults.PollInterval)
	if err != nil || interval <= 0 {
		return cfg, &models.ConfigurationError{Field: "POLL_INTERVAL", Reason: "must be a positive duration"}
	}

	cfg = models.DeploymentConfig{
		ClusterType: clusterType,
		Namespace:   GetEnv("CACHE_NAMESPACE", "cache"),
		Name:        GetEnv("CACHE_NAME", "cache"),
		Replicas:    replicas,
		Image:       GetEnv("CACHE_IMAGE", "redis:7.2-alpine"),
		Port:        port,
		Resources: models.ResourceSettings{
			CPURequest:    GetEnv("CPU_REQUEST", "100m"),
			CPULimit:      GetEnv("CPU_LIMIT", "500m"),
			MemoryRequest: GetEnv("MEMORY_REQUEST", "128Mi"),
			MemoryLimit:   GetEnv("MEMORY_LIMIT", "512Mi"),
		},
		PersistenceEnabled:      persistence,
		VolumeSize:              volumeSize,
		StorageClassName:        storageClass,
		Password:                password,
		TerminationGraceSeconds: int64(grace),
		RolloutTimeout:          timeout,
		PollInterval:            interval,
		ManifestPath:            GetEnv("MANIFEST_PATH", "cache-manifests.yaml"),
	}
	return cfg, nil
}
