package models

import "time"

// ClusterType identifies the kind of cluster the rollout targets.
// Defaults (replica count, persistence, storage class, timeouts) are
// keyed by this type rather than branching on raw strings.
type ClusterType string

const (
	ClusterKind ClusterType = "kind"
	ClusterEKS  ClusterType = "eks"
)

// Valid reports whether the cluster type is one cachectl knows how to
// deploy to.
func (c ClusterType) Valid() bool {
	return c == ClusterKind || c == ClusterEKS
}

// SupportsZoneSpread reports whether this cluster type can meaningfully
// spread replicas across zones. Single-node dev clusters cannot.
func (c ClusterType) SupportsZoneSpread() bool {
	return c == ClusterEKS
}

// RequiresManagedStorageClass reports whether persistent deployments on
// this cluster type need cachectl to provision the storage class itself.
// kind ships with a default local-path provisioner.
func (c ClusterType) RequiresManagedStorageClass() bool {
	return c == ClusterEKS
}

// ResourceSettings holds container resource requests and limits as
// Kubernetes quantity strings.
type ResourceSettings struct {
	CPURequest    string
	CPULimit      string
	MemoryRequest string
	MemoryLimit   string
}

// DeploymentConfig is the single resolved configuration object passed to
// every pipeline stage. It is built once by config.Resolve, validated at
// construction, and never mutated afterwards.
type DeploymentConfig struct {
	ClusterType ClusterType
	Namespace   string
	Name        string
	Replicas    int

	Image     string
	Port      int
	Resources ResourceSettings

	PersistenceEnabled bool
	VolumeSize         string
	StorageClassName   string

	// Password is the cache credential. Mandatory for any mutating
	// action; carried here but never rendered into the manifest file.
	Password string

	TerminationGraceSeconds int64

	RolloutTimeout time.Duration
	PollInterval   time.Duration

	ManifestPath string
}

// MinAvailable is the disruption-budget minimum availability derived from
// the replica count: 2 when running 3 or more replicas, else 1.
func (c DeploymentConfig) MinAvailable() int {
	if c.Replicas >= 3 {
		return 2
	}
	return 1
}

// SecretName is the name of the credential Secret provisioned out of band.
func (c DeploymentConfig) SecretName() string {
	return c.Name + "-auth"
}

// HeadlessServiceName is the governing service for the StatefulSet.
func (c DeploymentConfig) HeadlessServiceName() string {
	return c.Name + "-headless"
}

// ServiceAccountName is the identity the cache pods run under.
func (c DeploymentConfig) ServiceAccountName() string {
	return c.Name
}

// PrimaryHost is the stable DNS name of pod ordinal 0, which starts as
// the replication primary.
func (c DeploymentConfig) PrimaryHost() string {
	return c.Name + "-0." + c.HeadlessServiceName() + "." + c.Namespace + ".svc.cluster.local"
}
