package services

import (
	"context"
	"testing"

	"github.com/cacheops/cachectl/models"
	"github.com/cacheops/cachectl/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
)

func statefulSetWithStatus(cfg models.DeploymentConfig, ready, updated int32) *appsv1.StatefulSet {
	statefulSet := utils.BuildStatefulSet(cfg, models.TopologyProfile{})
	statefulSet.Generation = 2
	statefulSet.Status = appsv1.StatefulSetStatus{
		ObservedGeneration: 2,
		Replicas:           int32(cfg.Replicas),
		ReadyReplicas:      ready,
		UpdatedReplicas:    updated,
	}
	return statefulSet
}

func TestWaitForConvergenceReady(t *testing.T) {
	cfg := testDeployConfig()
	client, _ := fakeClient(statefulSetWithStatus(cfg, 3, 3))

	outcome := NewWaitService(client).WaitForConvergence(context.Background(), cfg)

	assert.Equal(t, models.RolloutReady, outcome.Phase)
	assert.Empty(t, outcome.Diagnostics)
}

func TestWaitForConvergenceTimesOutWhenNotReady(t *testing.T) {
	cfg := testDeployConfig()
	client, _ := fakeClient(statefulSetWithStatus(cfg, 1, 3))

	outcome := NewWaitService(client).WaitForConvergence(context.Background(), cfg)

	assert.Equal(t, models.RolloutTimedOut, outcome.Phase)
	assert.Contains(t, outcome.Reason, "ready=1")
}

func TestWaitForConvergenceTimesOutOnMissingWorkload(t *testing.T) {
	cfg := testDeployConfig()
	client, _ := fakeClient()

	outcome := NewWaitService(client).WaitForConvergence(context.Background(), cfg)

	assert.Equal(t, models.RolloutTimedOut, outcome.Phase)
	assert.Contains(t, outcome.Reason, "not found")
}

func TestWaitForConvergenceIgnoresStaleGeneration(t *testing.T) {
	cfg := testDeployConfig()
	statefulSet := statefulSetWithStatus(cfg, 3, 3)
	statefulSet.Status.ObservedGeneration = 1
	client, _ := fakeClient(statefulSet)

	outcome := NewWaitService(client).WaitForConvergence(context.Background(), cfg)

	require.Equal(t, models.RolloutTimedOut, outcome.Phase)
	assert.Contains(t, outcome.Reason, "observed=1")
}

func TestWaitForConvergenceCollectsDiagnosticsOnTimeout(t *testing.T) {
	cfg := testDeployConfig()
	client, _ := fakeClient(statefulSetWithStatus(cfg, 0, 0))

	outcome := NewWaitService(client).WaitForConvergence(context.Background(), cfg)

	require.Equal(t, models.RolloutTimedOut, outcome.Phase)
	assert.NotEmpty(t, outcome.Diagnostics)

	var sources []string
	for _, entry := range outcome.Diagnostics {
		sources = append(sources, entry.Source)
	}
	assert.Contains(t, sources, "pods")
	assert.Contains(t, sources, "events")
}
