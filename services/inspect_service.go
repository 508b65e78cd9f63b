package services

import (
	"context"
	"fmt"

	"github.com/cacheops/cachectl/dto"
	"github.com/cacheops/cachectl/lib/kubernetes"
	"github.com/cacheops/cachectl/logger"
	"github.com/cacheops/cachectl/models"
	"github.com/cacheops/cachectl/utils"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// InspectService produces a read-only report of the deployment state.
// It never mutates the cluster; missing resources are reported as
// absent rather than treated as errors.
type InspectService struct {
	client *kubernetes.Client
	verify *VerifyService
}

// NewInspectService creates a new inspect service instance.
func NewInspectService(client *kubernetes.Client) *InspectService {
	return &InspectService{
		client: client,
		verify: NewVerifyService(client),
	}
}

// Inspect gathers the current state of every resource the deployment
// owns. When runChecks is set the functional verification battery runs
// too and its report is attached.
func (s *InspectService) Inspect(ctx context.Context, cfg models.DeploymentConfig, runChecks bool) (*dto.InspectReport, error) {
	log := logger.WithComponent("inspect")

	report := &dto.InspectReport{Namespace: cfg.Namespace}

	exists, err := s.client.NamespaceExists(ctx, cfg.Namespace)
	if err != nil {
		return nil, err
	}
	report.NamespaceFound = exists
	if !exists {
		log.Info().Str("namespace", cfg.Namespace).Msg("namespace not found")
		return report, nil
	}

	report.Workload = s.workloadStatus(ctx, cfg)
	report.Pods = s.podStatuses(ctx, cfg)
	report.Services = s.serviceStatuses(ctx, cfg)
	report.Endpoints = s.endpointStatus(ctx, cfg)
	report.Volumes = s.volumeStatuses(ctx, cfg)

	if runChecks {
		verification := s.verify.Verify(ctx, cfg)
		report.Verification = &verification
	}
	return report, nil
}

// ConnectionInfo derives the client-facing connection summary from the
// resolved configuration. The credential itself is never included.
func (s *InspectService) ConnectionInfo(cfg models.DeploymentConfig) dto.ConnectionInfo {
	info := dto.ConnectionInfo{
		ClientHost:  fmt.Sprintf("%s.%s.svc.cluster.local", cfg.Name, cfg.Namespace),
		PrimaryHost: cfg.PrimaryHost(),
		Port:        cfg.Port,
		SecretName:  cfg.SecretName(),
		SecretKey:   utils.SecretPasswordKey,
	}
	for ordinal := 1; ordinal < cfg.Replicas; ordinal++ {
		info.ReplicaHosts = append(info.ReplicaHosts,
			fmt.Sprintf("%s-%d.%s.%s.svc.cluster.local", cfg.Name, ordinal, cfg.HeadlessServiceName(), cfg.Namespace))
	}
	return info
}

func (s *InspectService) workloadStatus(ctx context.Context, cfg models.DeploymentConfig) *dto.WorkloadStatus {
	statefulSet, err := s.client.Clientset.AppsV1().StatefulSets(cfg.Namespace).Get(ctx, cfg.Name, metav1.GetOptions{})
	if err != nil {
		if !apierrors.IsNotFound(err) {
			lg := logger.WithComponent("inspect")
			lg.Warn().Err(err).Msg("statefulset lookup failed")
		}
		return nil
	}
	return &dto.WorkloadStatus{
		Name:               statefulSet.Name,
		Replicas:           statefulSet.Status.Replicas,
		ReadyReplicas:      statefulSet.Status.ReadyReplicas,
		UpdatedReplicas:    statefulSet.Status.UpdatedReplicas,
		CurrentRevision:    statefulSet.Status.CurrentRevision,
		UpdateRevision:     statefulSet.Status.UpdateRevision,
		Generation:         statefulSet.Generation,
		ObservedGeneration: statefulSet.Status.ObservedGeneration,
	}
}

func (s *InspectService) podStatuses(ctx context.Context, cfg models.DeploymentConfig) []dto.PodStatus {
	pods, err := s.client.Clientset.CoreV1().Pods(cfg.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "app=" + cfg.Name,
	})
	if err != nil {
		lg := logger.WithComponent("inspect")
		lg.Warn().Err(err).Msg("pod listing failed")
		return nil
	}

	usage := s.podUsage(ctx, cfg)
	var statuses []dto.PodStatus
	for _, pod := range pods.Items {
		status := dto.PodStatus{
			Name:  pod.Name,
			Phase: string(pod.Status.Phase),
			Node:  pod.Spec.NodeName,
		}
		for _, condition := range pod.Status.Conditions {
			if condition.Type == corev1.PodReady {
				status.Ready = condition.Status == corev1.ConditionTrue
			}
		}
		for _, containerStatus := range pod.Status.ContainerStatuses {
			status.Restarts += containerStatus.RestartCount
		}
		if u, ok := usage[pod.Name]; ok {
			status.CPUUsage = u.cpu
			status.MemoryUsage = u.memory
		}
		statuses = append(statuses, status)
	}
	return statuses
}

type resourceUsage struct {
	cpu    string
	memory string
}

// podUsage queries the metrics API when available. Any failure just
// leaves the usage columns empty.
func (s *InspectService) podUsage(ctx context.Context, cfg models.DeploymentConfig) map[string]resourceUsage {
	usage := make(map[string]resourceUsage)
	if s.client.MetricsClient == nil {
		return usage
	}

	podMetrics, err := s.client.MetricsClient.MetricsV1beta1().PodMetricses(cfg.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "app=" + cfg.Name,
	})
	if err != nil {
		lg := logger.WithComponent("inspect")
		lg.Debug().Err(err).Msg("pod metrics unavailable")
		return usage
	}

	for _, item := range podMetrics.Items {
		var cpuMilli, memoryBytes int64
		for _, container := range item.Containers {
			cpuMilli += container.Usage.Cpu().MilliValue()
			memoryBytes += container.Usage.Memory().Value()
		}
		usage[item.Name] = resourceUsage{
			cpu:    utils.FormatCPUCores(cpuMilli),
			memory: utils.FormatBytesToHumanReadable(memoryBytes),
		}
	}
	return usage
}

func (s *InspectService) serviceStatuses(ctx context.Context, cfg models.DeploymentConfig) []dto.ServiceStatus {
	var statuses []dto.ServiceStatus
	for _, name := range []string{cfg.Name, cfg.HeadlessServiceName()} {
		service, err := s.client.Clientset.CoreV1().Services(cfg.Namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			continue
		}
		status := dto.ServiceStatus{
			Name:      service.Name,
			Type:      string(service.Spec.Type),
			ClusterIP: service.Spec.ClusterIP,
		}
		for _, port := range service.Spec.Ports {
			status.Ports = append(status.Ports, port.Port)
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func (s *InspectService) endpointStatus(ctx context.Context, cfg models.DeploymentConfig) *dto.EndpointStatus {
	endpoints, err := s.client.Clientset.CoreV1().Endpoints(cfg.Namespace).Get(ctx, cfg.Name, metav1.GetOptions{})
	if err != nil {
		return nil
	}
	status := &dto.EndpointStatus{}
	for _, subset := range endpoints.Subsets {
		status.Ready += len(subset.Addresses)
		status.NotReady += len(subset.NotReadyAddresses)
	}
	return status
}

func (s *InspectService) volumeStatuses(ctx context.Context, cfg models.DeploymentConfig) []dto.VolumeStatus {
	claims, err := s.client.Clientset.CoreV1().PersistentVolumeClaims(cfg.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "app=" + cfg.Name,
	})
	if err != nil {
		lg := logger.WithComponent("inspect")
		lg.Warn().Err(err).Msg("pvc listing failed")
		return nil
	}

	var statuses []dto.VolumeStatus
	for _, claim := range claims.Items {
		status := dto.VolumeStatus{
			Name:  claim.Name,
			Phase: string(claim.Status.Phase),
		}
		if capacity, ok := claim.Status.Capacity[corev1.ResourceStorage]; ok {
			status.Capacity = capacity.String()
		}
		if claim.Spec.StorageClassName != nil {
			status.StorageClass = *claim.Spec.StorageClassName
		}
		statuses = append(statuses, status)
	}
	return statuses
}
