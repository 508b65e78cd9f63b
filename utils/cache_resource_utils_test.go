package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/cacheops/cachectl/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
)

func testConfig() models.DeploymentConfig {
	return models.DeploymentConfig{
		ClusterType: models.ClusterKind,
		Namespace:   "cache",
		Name:        "cache",
		Replicas:    1,
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
		RolloutTimeout:          3 * time.Minute,
		PollInterval:            3 * time.Second,
		ManifestPath:            "cache-manifests.yaml",
	}
}

func TestBuildHeadlessService(t *testing.T) {
	service := BuildHeadlessService(testConfig())

	assert.Equal(t, "cache-headless", service.Name)
	assert.Equal(t, "None", service.Spec.ClusterIP)
	assert.True(t, service.Spec.PublishNotReadyAddresses)
	require.Len(t, service.Spec.Ports, 1)
	assert.Equal(t, int32(6379), service.Spec.Ports[0].Port)
}

func TestBuildClientService(t *testing.T) {
	service := BuildClientService(testConfig())

	assert.Equal(t, "cache", service.Name)
	assert.Equal(t, corev1.ServiceTypeClusterIP, service.Spec.Type)
	assert.Equal(t, map[string]string{"app": "cache"}, service.Spec.Selector)
}

func TestBuildDisruptionBudgetMinAvailable(t *testing.T) {
	tests := []struct {
		name     string
		replicas int
		want     int
	}{
		{"single replica", 1, 1},
		{"two replicas", 2, 1},
		{"three replicas", 3, 2},
		{"five replicas", 5, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Replicas = tt.replicas

			budget := BuildDisruptionBudget(cfg)
			require.NotNil(t, budget.Spec.MinAvailable)
			assert.Equal(t, tt.want, budget.Spec.MinAvailable.IntValue())
		})
	}
}

func TestBuildNetworkPolicyRestrictsToCachePort(t *testing.T) {
	policy := BuildNetworkPolicy(testConfig())

	require.Len(t, policy.Spec.Ingress, 1)
	require.Len(t, policy.Spec.Ingress[0].Ports, 1)
	assert.Equal(t, 6379, policy.Spec.Ingress[0].Ports[0].Port.IntValue())
	require.Len(t, policy.Spec.Ingress[0].From, 1)
	assert.NotNil(t, policy.Spec.Ingress[0].From[0].PodSelector)
	assert.Nil(t, policy.Spec.Ingress[0].From[0].NamespaceSelector)
}

func TestBuildStatefulSetEphemeral(t *testing.T) {
	cfg := testConfig()
	cfg.PersistenceEnabled = false

	statefulSet := BuildStatefulSet(cfg, models.TopologyProfile{})

	assert.Empty(t, statefulSet.Spec.VolumeClaimTemplates)
	require.Len(t, statefulSet.Spec.Template.Spec.Volumes, 1)
	assert.Equal(t, DataVolumeName, statefulSet.Spec.Template.Spec.Volumes[0].Name)
	assert.NotNil(t, statefulSet.Spec.Template.Spec.Volumes[0].EmptyDir)

	script := statefulSet.Spec.Template.Spec.Containers[0].Command[2]
	assert.Contains(t, script, "--appendonly no")
	assert.NotContains(t, script, "--appendonly yes")
}

func TestBuildStatefulSetPersistent(t *testing.T) {
	cfg := testConfig()
	cfg.PersistenceEnabled = true
	cfg.StorageClassName = "cachectl-gp3"

	statefulSet := BuildStatefulSet(cfg, models.TopologyProfile{})

	require.Len(t, statefulSet.Spec.VolumeClaimTemplates, 1)
	claim := statefulSet.Spec.VolumeClaimTemplates[0]
	assert.Equal(t, DataVolumeName, claim.Name)
	require.NotNil(t, claim.Spec.StorageClassName)
	assert.Equal(t, "cachectl-gp3", *claim.Spec.StorageClassName)
	assert.Empty(t, statefulSet.Spec.Template.Spec.Volumes)

	script := statefulSet.Spec.Template.Spec.Containers[0].Command[2]
	assert.Contains(t, script, "--appendonly yes")
}

func TestBuildStatefulSetPasswordComesFromSecret(t *testing.T) {
	cfg := testConfig()
	statefulSet := BuildStatefulSet(cfg, models.TopologyProfile{})

	container := statefulSet.Spec.Template.Spec.Containers[0]
	require.Len(t, container.Env, 1)
	env := container.Env[0]
	assert.Equal(t, "CACHE_PASSWORD", env.Name)
	require.NotNil(t, env.ValueFrom)
	require.NotNil(t, env.ValueFrom.SecretKeyRef)
	assert.Equal(t, "cache-auth", env.ValueFrom.SecretKeyRef.Name)
	assert.Equal(t, SecretPasswordKey, env.ValueFrom.SecretKeyRef.Key)

	// The literal credential never appears in the pod spec.
	script := container.Command[2]
	assert.NotContains(t, script, cfg.Password)
}

func TestBuildStatefulSetReplicationScript(t *testing.T) {
	cfg := testConfig()
	cfg.Replicas = 3

	script := BuildStatefulSet(cfg, models.TopologyProfile{}).Spec.Template.Spec.Containers[0].Command[2]

	assert.Contains(t, script, `"$ORDINAL" = "0"`)
	assert.Contains(t, script, "--replicaof cache-0.cache-headless.cache.svc.cluster.local 6379")
	assert.Contains(t, script, "--masterauth")
}

func TestBuildStatefulSetTopologySpread(t *testing.T) {
	cfg := testConfig()
	cfg.ClusterType = models.ClusterEKS

	without := BuildStatefulSet(cfg, models.TopologyProfile{SpreadEnabled: false})
	assert.Empty(t, without.Spec.Template.Spec.TopologySpreadConstraints)

	with := BuildStatefulSet(cfg, models.TopologyProfile{
		NodeCount:     3,
		Zones:         []string{"us-east-1a", "us-east-1b"},
		SpreadEnabled: true,
	})
	require.Len(t, with.Spec.Template.Spec.TopologySpreadConstraints, 1)
	constraint := with.Spec.Template.Spec.TopologySpreadConstraints[0]
	assert.Equal(t, int32(1), constraint.MaxSkew)
	assert.Equal(t, corev1.ScheduleAnyway, constraint.WhenUnsatisfiable)
}

func TestBuildSecretHoldsCredential(t *testing.T) {
	secret := BuildSecret(testConfig())

	assert.Equal(t, "cache-auth", secret.Name)
	assert.Equal(t, "s3cret", secret.StringData[SecretPasswordKey])
}

func TestBuildStorageClassIsDurableGP3(t *testing.T) {
	cfg := testConfig()
	cfg.StorageClassName = "cachectl-gp3"

	storageClass := BuildStorageClass(cfg)

	assert.Equal(t, "cachectl-gp3", storageClass.Name)
	assert.Equal(t, "ebs.csi.aws.com", storageClass.Provisioner)
	assert.Equal(t, "gp3", storageClass.Parameters["type"])
	assert.Equal(t, "true", storageClass.Parameters["encrypted"])
	require.NotNil(t, storageClass.AllowVolumeExpansion)
	assert.True(t, *storageClass.AllowVolumeExpansion)
}

func TestStartupScriptOrdinalDetection(t *testing.T) {
	script := startupScript(testConfig())
	assert.True(t, strings.HasPrefix(script, `ORDINAL="${HOSTNAME##*-}"`))
}
