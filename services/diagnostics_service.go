package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cacheops/cachectl/lib/kubernetes"
	"github.com/cacheops/cachectl/models"
	"github.com/cacheops/cachectl/utils"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const diagnosticsCallTimeout = 10 * time.Second

// DiagnosticsService collects a best-effort snapshot of the failing
// deployment. Every call is independently bounded and a failure is
// recorded as data instead of aborting the pass, so a snapshot always
// completes.
type DiagnosticsService struct {
	client *kubernetes.Client
}

// NewDiagnosticsService creates a new diagnostics service instance.
func NewDiagnosticsService(client *kubernetes.Client) *DiagnosticsService {
	return &DiagnosticsService{client: client}
}

// Snapshot gathers pod states, recent namespace events and log tails.
func (s *DiagnosticsService) Snapshot(ctx context.Context, cfg models.DeploymentConfig) []models.DiagnosticEntry {
	var entries []models.DiagnosticEntry
	entries = append(entries, s.podStates(ctx, cfg)...)
	entries = append(entries, s.recentEvents(ctx, cfg))
	entries = append(entries, s.podLogs(ctx, cfg)...)
	return entries
}

func (s *DiagnosticsService) podStates(ctx context.Context, cfg models.DeploymentConfig) []models.DiagnosticEntry {
	callCtx, cancel := context.WithTimeout(ctx, diagnosticsCallTimeout)
	defer cancel()

	pods, err := s.client.Clientset.CoreV1().Pods(cfg.Namespace).List(callCtx, metav1.ListOptions{
		LabelSelector: "app=" + cfg.Name,
	})
	if err != nil {
		return []models.DiagnosticEntry{{Source: "pods", Err: err.Error()}}
	}

	var entries []models.DiagnosticEntry
	for _, pod := range pods.Items {
		var states []string
		for _, containerStatus := range pod.Status.ContainerStatuses {
			state := "running"
			if waiting := containerStatus.State.Waiting; waiting != nil {
				state = fmt.Sprintf("waiting (%s: %s)", waiting.Reason, waiting.Message)
			} else if terminated := containerStatus.State.Terminated; terminated != nil {
				state = fmt.Sprintf("terminated (%s, exit %d)", terminated.Reason, terminated.ExitCode)
			}
			states = append(states, fmt.Sprintf("%s=%s restarts=%d", containerStatus.Name, state, containerStatus.RestartCount))
		}
		entries = append(entries, models.DiagnosticEntry{
			Source: "pod/" + pod.Name,
			Detail: fmt.Sprintf("phase=%s %s", pod.Status.Phase, strings.Join(states, " ")),
		})
	}
	if len(entries) == 0 {
		entries = append(entries, models.DiagnosticEntry{Source: "pods", Detail: "no pods found for workload"})
	}
	return entries
}

func (s *DiagnosticsService) recentEvents(ctx context.Context, cfg models.DeploymentConfig) models.DiagnosticEntry {
	callCtx, cancel := context.WithTimeout(ctx, diagnosticsCallTimeout)
	defer cancel()

	events, err := s.client.Clientset.CoreV1().Events(cfg.Namespace).List(callCtx, metav1.ListOptions{Limit: 20})
	if err != nil {
		return models.DiagnosticEntry{Source: "events", Err: err.Error()}
	}

	var lines []string
	for _, event := range events.Items {
		lines = append(lines, fmt.Sprintf("%s %s %s/%s: %s",
			event.Type, event.Reason, event.InvolvedObject.Kind, event.InvolvedObject.Name, event.Message))
	}
	if len(lines) == 0 {
		return models.DiagnosticEntry{Source: "events", Detail: "no recent events"}
	}
	return models.DiagnosticEntry{Source: "events", Detail: strings.Join(lines, "\n")}
}

func (s *DiagnosticsService) podLogs(ctx context.Context, cfg models.DeploymentConfig) []models.DiagnosticEntry {
	callCtx, cancel := context.WithTimeout(ctx, diagnosticsCallTimeout)
	defer cancel()

	pods, err := s.client.Clientset.CoreV1().Pods(cfg.Namespace).List(callCtx, metav1.ListOptions{
		LabelSelector: "app=" + cfg.Name,
	})
	if err != nil {
		return []models.DiagnosticEntry{{Source: "logs", Err: err.Error()}}
	}

	var entries []models.DiagnosticEntry
	for _, pod := range pods.Items {
		entries = append(entries, s.tailLogs(ctx, cfg.Namespace, pod.Name))
	}
	return entries
}

func (s *DiagnosticsService) tailLogs(ctx context.Context, namespace, podName string) models.DiagnosticEntry {
	callCtx, cancel := context.WithTimeout(ctx, diagnosticsCallTimeout)
	defer cancel()

	source := "logs/" + podName
	request := s.client.Clientset.CoreV1().Pods(namespace).GetLogs(podName, &corev1.PodLogOptions{
		Container: utils.ContainerName,
		TailLines: utils.Int64Ptr(20),
	})
	stream, err := request.Stream(callCtx)
	if err != nil {
		return models.DiagnosticEntry{Source: source, Err: err.Error()}
	}
	defer stream.Close()

	content, err := io.ReadAll(io.LimitReader(stream, 4096))
	if err != nil {
		return models.DiagnosticEntry{Source: source, Err: err.Error()}
	}
	if len(content) == 0 {
		return models.DiagnosticEntry{Source: source, Detail: "no logs available"}
	}
	return models.DiagnosticEntry{Source: source, Detail: string(content)}
}
