package services

import (
	"context"
	"testing"

	"github.com/cacheops/cachectl/models"
	"github.com/cacheops/cachectl/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func runningPod(cfg models.DeploymentConfig, name, node string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: cfg.Namespace,
			Labels:    utils.GetResourceLabels(cfg),
		},
		Spec: corev1.PodSpec{NodeName: node},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodReady, Status: corev1.ConditionTrue},
			},
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: utils.ContainerName, RestartCount: 2},
			},
		},
	}
}

func TestInspectReportsAbsentNamespaceCleanly(t *testing.T) {
	cfg := testDeployConfig()
	client, _ := fakeClient()

	report, err := NewInspectService(client).Inspect(context.Background(), cfg, false)
	require.NoError(t, err)

	assert.False(t, report.NamespaceFound)
	assert.Nil(t, report.Workload)
	assert.Empty(t, report.Pods)
}

func TestInspectReportsDeployedState(t *testing.T) {
	cfg := testDeployConfig()
	statefulSet := utils.BuildStatefulSet(cfg, models.TopologyProfile{})
	statefulSet.Status.Replicas = 3
	statefulSet.Status.ReadyReplicas = 3

	client, _ := fakeClient(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: cfg.Namespace}},
		statefulSet,
		utils.BuildHeadlessService(cfg),
		utils.BuildClientService(cfg),
		runningPod(cfg, "cache-0", "node-a"),
		runningPod(cfg, "cache-1", "node-b"),
		endpointsWithReady(cfg, 3),
	)

	report, err := NewInspectService(client).Inspect(context.Background(), cfg, false)
	require.NoError(t, err)

	assert.True(t, report.NamespaceFound)
	require.NotNil(t, report.Workload)
	assert.Equal(t, int32(3), report.Workload.ReadyReplicas)

	require.Len(t, report.Pods, 2)
	assert.Equal(t, "cache-0", report.Pods[0].Name)
	assert.True(t, report.Pods[0].Ready)
	assert.Equal(t, int32(2), report.Pods[0].Restarts)
	assert.Equal(t, "node-a", report.Pods[0].Node)
	// Metrics client absent, usage columns stay empty.
	assert.Empty(t, report.Pods[0].CPUUsage)

	assert.Len(t, report.Services, 2)
	require.NotNil(t, report.Endpoints)
	assert.Equal(t, 3, report.Endpoints.Ready)
	assert.Nil(t, report.Verification)
}

func TestInspectWithChecksAttachesVerification(t *testing.T) {
	cfg := testDeployConfig()
	client, clientset := fakeClient(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: cfg.Namespace}},
		endpointsWithReady(cfg, 3),
	)

	service := NewInspectService(client)
	service.verify = newTestVerifyService(clientset, healthyExec(cfg))

	report, err := service.Inspect(context.Background(), cfg, true)
	require.NoError(t, err)

	require.NotNil(t, report.Verification)
	assert.Len(t, report.Verification.Checks, 6)
	assert.True(t, report.Verification.Passed())
}

func TestConnectionInfoReferencesSecretNotValue(t *testing.T) {
	cfg := testDeployConfig()
	client, _ := fakeClient()

	info := NewInspectService(client).ConnectionInfo(cfg)

	assert.Equal(t, "cache.cache.svc.cluster.local", info.ClientHost)
	assert.Equal(t, cfg.PrimaryHost(), info.PrimaryHost)
	assert.Len(t, info.ReplicaHosts, 2)
	assert.Equal(t, 6379, info.Port)
	assert.Equal(t, "cache-auth", info.SecretName)
	assert.Equal(t, utils.SecretPasswordKey, info.SecretKey)
}
