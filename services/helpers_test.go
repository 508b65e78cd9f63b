package services

import (
	"time"

	libkube "github.com/cacheops/cachectl/lib/kubernetes"
	"github.com/cacheops/cachectl/models"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
)

func testDeployConfig() models.DeploymentConfig {
	return models.DeploymentConfig{
		ClusterType: models.ClusterKind,
		Namespace:   "cache",
		Name:        "cache",
		Replicas:    3,
		Image:       "redis:7.2-alpine",
		Port:        6379,
		Resources: models.ResourceSettings{
			CPURequest:    "100m",
			CPULimit:      "500m",
			MemoryRequest: "128Mi",
			MemoryLimit:   "512Mi",
		},
		VolumeSize:              "1Gi",
		StorageClassName:        "standard",
		Password:                "s3cret",
		TerminationGraceSeconds: 30,
		RolloutTimeout:          200 * time.Millisecond,
		PollInterval:            10 * time.Millisecond,
		ManifestPath:            "cache-manifests.yaml",
	}
}

func fakeClient(objects ...runtime.Object) (*libkube.Client, *fake.Clientset) {
	clientset := fake.NewSimpleClientset(objects...)
	return &libkube.Client{Clientset: clientset}, clientset
}
