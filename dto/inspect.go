package dto

import "github.com/cacheops/cachectl/models"

// InspectReport is the structured read-only view of a deployment. Absent
// resources are reported cleanly through the Found flags instead of
// erroring the whole inspection.
type InspectReport struct {
	Namespace      string                     `json:"namespace"`
	NamespaceFound bool                       `json:"namespaceFound"`
	Workload       *WorkloadStatus            `json:"workload,omitempty"`
	Pods           []PodStatus                `json:"pods,omitempty"`
	Services       []ServiceStatus            `json:"services,omitempty"`
	Endpoints      *EndpointStatus            `json:"endpoints,omitempty"`
	Volumes        []VolumeStatus             `json:"volumes,omitempty"`
	Verification   *models.VerificationReport `json:"verification,omitempty"`
}

// WorkloadStatus summarizes the StatefulSet controller view.
type WorkloadStatus struct {
	Name               string `json:"name"`
	Replicas           int32  `json:"replicas"`
	ReadyReplicas      int32  `json:"readyReplicas"`
	UpdatedReplicas    int32  `json:"updatedReplicas"`
	CurrentRevision    string `json:"currentRevision,omitempty"`
	UpdateRevision     string `json:"updateRevision,omitempty"`
	Generation         int64  `json:"generation"`
	ObservedGeneration int64  `json:"observedGeneration"`
}

// PodStatus is the per-pod line of the report. CPU and memory usage come
// from the metrics API and stay empty when it is unavailable.
type PodStatus struct {
	Name        string `json:"name"`
	Phase       string `json:"phase"`
	Ready       bool   `json:"ready"`
	Restarts    int32  `json:"restarts"`
	Node        string `json:"node,omitempty"`
	CPUUsage    string `json:"cpuUsage,omitempty"`
	MemoryUsage string `json:"memoryUsage,omitempty"`
}

// ServiceStatus describes one of the deployment's services.
type ServiceStatus struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	ClusterIP string  `json:"clusterIP"`
	Ports     []int32 `json:"ports"`
}

// EndpointStatus counts ready and not-ready addresses behind the client
// service.
type EndpointStatus struct {
	Ready    int `json:"ready"`
	NotReady int `json:"notReady"`
}

// VolumeStatus describes a persistent volume claim owned by the
// workload.
type VolumeStatus struct {
	Name         string `json:"name"`
	Phase        string `json:"phase"`
	Capacity     string `json:"capacity,omitempty"`
	StorageClass string `json:"storageClass,omitempty"`
}

// ConnectionInfo tells a client how to reach the cache. The credential
// is referenced by secret name and key, never inlined.
type ConnectionInfo struct {
	ClientHost   string   `json:"clientHost"`
	PrimaryHost  string   `json:"primaryHost"`
	ReplicaHosts []string `json:"replicaHosts,omitempty"`
	Port         int      `json:"port"`
	SecretName   string   `json:"secretName"`
	SecretKey    string   `json:"secretKey"`
}
