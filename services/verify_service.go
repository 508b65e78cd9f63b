package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cacheops/cachectl/lib/kubernetes"
	"github.com/cacheops/cachectl/logger"
	"github.com/cacheops/cachectl/models"
	"github.com/cacheops/cachectl/utils"
	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	checkCallTimeout = 15 * time.Second

	// expirySeconds is the TTL given to the expiry probe key; the re-read
	// happens one second past it.
	expirySeconds = 3
	expiryMargin  = 1 * time.Second
)

// ExecFunc runs a command inside a named pod of the deployment and
// returns stdout and stderr. Tests inject a fake; production wires it to
// the exec subresource.
type ExecFunc func(ctx context.Context, namespace, pod string, command []string) (string, string, error)

// VerifyService runs the functional check battery against the live
// cache: smoke checks first, then the high-signal behavioral ones. Every
// check runs regardless of earlier failures and reports expected vs
// observed on its own line.
type VerifyService struct {
	client *kubernetes.Client
	exec   ExecFunc
	sleep  func(time.Duration)
}

// NewVerifyService creates a new verify service instance.
func NewVerifyService(client *kubernetes.Client) *VerifyService {
	return &VerifyService{
		client: client,
		sleep:  time.Sleep,
		exec: func(ctx context.Context, namespace, pod string, command []string) (string, string, error) {
			return client.ExecInPod(ctx, namespace, pod, utils.ContainerName, command)
		},
	}
}

// Verify executes the full battery and returns the per-check report.
// The aggregate passes only if every check passed.
func (s *VerifyService) Verify(ctx context.Context, cfg models.DeploymentConfig) models.VerificationReport {
	log := logger.WithComponent("verify")

	report := models.VerificationReport{}
	add := func(result models.CheckResult) {
		if result.Passed {
			log.Info().Str("check", result.Name).Msg("passed")
		} else {
			log.Error().Str("check", result.Name).Str("detail", result.Detail).Msg("failed")
		}
		report.Checks = append(report.Checks, result)
	}

	add(s.checkPing(ctx, cfg))
	add(s.checkEndpoints(ctx, cfg))
	add(s.checkAuthEnforced(ctx, cfg))
	add(s.checkRoundTrip(ctx, cfg))
	add(s.checkExpiry(ctx, cfg))
	add(s.checkReplicationRoles(ctx, cfg))
	return report
}

func (s *VerifyService) cli(cfg models.DeploymentConfig, args ...string) []string {
	command := []string{"redis-cli", "--no-auth-warning", "-p", fmt.Sprintf("%d", cfg.Port), "-a", cfg.Password}
	return append(command, args...)
}

// cliNoAuth deliberately omits the credential to probe auth enforcement.
func (s *VerifyService) cliNoAuth(cfg models.DeploymentConfig, args ...string) []string {
	command := []string{"redis-cli", "-p", fmt.Sprintf("%d", cfg.Port)}
	return append(command, args...)
}

func (s *VerifyService) runOnPod(ctx context.Context, namespace, pod string, command []string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, checkCallTimeout)
	defer cancel()
	stdout, stderr, err := s.exec(callCtx, namespace, pod, command)
	if err != nil {
		if combined := strings.TrimSpace(stdout + stderr); combined != "" {
			return combined, err
		}
		return "", err
	}
	return strings.TrimSpace(stdout + stderr), nil
}

func (s *VerifyService) checkPing(ctx context.Context, cfg models.DeploymentConfig) models.CheckResult {
	pod := fmt.Sprintf("%s-0", cfg.Name)
	out, err := s.runOnPod(ctx, cfg.Namespace, pod, s.cli(cfg, "ping"))
	if err != nil {
		return models.CheckResult{Name: "ping", Detail: fmt.Sprintf("expected PONG, exec failed: %v", err)}
	}
	if !strings.Contains(out, "PONG") {
		return models.CheckResult{Name: "ping", Detail: fmt.Sprintf("expected PONG, observed %q", out)}
	}
	return models.CheckResult{Name: "ping", Passed: true, Detail: "PONG"}
}

func (s *VerifyService) checkEndpoints(ctx context.Context, cfg models.DeploymentConfig) models.CheckResult {
	callCtx, cancel := context.WithTimeout(ctx, checkCallTimeout)
	defer cancel()

	endpoints, err := s.client.Clientset.CoreV1().Endpoints(cfg.Namespace).Get(callCtx, cfg.Name, metav1.GetOptions{})
	if err != nil {
		return models.CheckResult{Name: "endpoints", Detail: fmt.Sprintf("expected %d ready endpoints, lookup failed: %v", cfg.Replicas, err)}
	}

	ready := 0
	for _, subset := range endpoints.Subsets {
		ready += len(subset.Addresses)
	}
	if ready != cfg.Replicas {
		return models.CheckResult{
			Name:   "endpoints",
			Detail: fmt.Sprintf("expected %d ready endpoints, observed %d", cfg.Replicas, ready),
		}
	}
	return models.CheckResult{Name: "endpoints", Passed: true, Detail: fmt.Sprintf("%d ready endpoints", ready)}
}

func (s *VerifyService) checkAuthEnforced(ctx context.Context, cfg models.DeploymentConfig) models.CheckResult {
	pod := fmt.Sprintf("%s-0", cfg.Name)
	probeKey := "cachectl:authprobe:" + uuid.NewString()

	// Unauthenticated write must be refused.
	out, _ := s.runOnPod(ctx, cfg.Namespace, pod, s.cliNoAuth(cfg, "set", probeKey, "x"))
	if !strings.Contains(out, "NOAUTH") && !strings.Contains(out, "DENIED") {
		return models.CheckResult{
			Name:   "auth-enforced",
			Detail: fmt.Sprintf("expected unauthenticated write to be refused, observed %q", out),
		}
	}

	// Authenticated write must succeed.
	out, err := s.runOnPod(ctx, cfg.Namespace, pod, s.cli(cfg, "set", probeKey, "x", "EX", "60"))
	if err != nil || !strings.Contains(out, "OK") {
		return models.CheckResult{
			Name:   "auth-enforced",
			Detail: fmt.Sprintf("expected authenticated write to succeed, observed %q (err: %v)", out, err),
		}
	}
	return models.CheckResult{Name: "auth-enforced", Passed: true, Detail: "unauthenticated refused, authenticated accepted"}
}

func (s *VerifyService) checkRoundTrip(ctx context.Context, cfg models.DeploymentConfig) models.CheckResult {
	pod := fmt.Sprintf("%s-0", cfg.Name)
	probeKey := "cachectl:probe:" + uuid.NewString()
	probeValue := uuid.NewString()

	out, err := s.runOnPod(ctx, cfg.Namespace, pod, s.cli(cfg, "set", probeKey, probeValue, "EX", "60"))
	if err != nil || !strings.Contains(out, "OK") {
		return models.CheckResult{Name: "round-trip", Detail: fmt.Sprintf("write failed: %q (err: %v)", out, err)}
	}

	out, err = s.runOnPod(ctx, cfg.Namespace, pod, s.cli(cfg, "get", probeKey))
	if err != nil {
		return models.CheckResult{Name: "round-trip", Detail: fmt.Sprintf("read failed: %v", err)}
	}
	if out != probeValue {
		return models.CheckResult{
			Name:   "round-trip",
			Detail: fmt.Sprintf("expected %q, observed %q", probeValue, out),
		}
	}
	return models.CheckResult{Name: "round-trip", Passed: true, Detail: "probe key round-tripped"}
}

func (s *VerifyService) checkExpiry(ctx context.Context, cfg models.DeploymentConfig) models.CheckResult {
	pod := fmt.Sprintf("%s-0", cfg.Name)
	probeKey := "cachectl:expiry:" + uuid.NewString()

	out, err := s.runOnPod(ctx, cfg.Namespace, pod, s.cli(cfg, "set", probeKey, "ephemeral", "EX", fmt.Sprintf("%d", expirySeconds)))
	if err != nil || !strings.Contains(out, "OK") {
		return models.CheckResult{Name: "expiry", Detail: fmt.Sprintf("write failed: %q (err: %v)", out, err)}
	}

	s.sleep(time.Duration(expirySeconds)*time.Second + expiryMargin)

	out, err = s.runOnPod(ctx, cfg.Namespace, pod, s.cli(cfg, "get", probeKey))
	if err != nil {
		return models.CheckResult{Name: "expiry", Detail: fmt.Sprintf("re-read failed: %v", err)}
	}
	if out != "" && out != "(nil)" {
		return models.CheckResult{
			Name:   "expiry",
			Detail: fmt.Sprintf("expected key absent after %ds TTL, observed %q", expirySeconds, out),
		}
	}
	return models.CheckResult{Name: "expiry", Passed: true, Detail: "probe key expired on schedule"}
}

func (s *VerifyService) checkReplicationRoles(ctx context.Context, cfg models.DeploymentConfig) models.CheckResult {
	primaries := 0
	replicas := 0
	var observations []string

	for ordinal := 0; ordinal < cfg.Replicas; ordinal++ {
		pod := fmt.Sprintf("%s-%d", cfg.Name, ordinal)
		out, err := s.runOnPod(ctx, cfg.Namespace, pod, s.cli(cfg, "info", "replication"))
		if err != nil {
			observations = append(observations, fmt.Sprintf("%s=error(%v)", pod, err))
			continue
		}
		role := parseReplicationRole(out)
		observations = append(observations, fmt.Sprintf("%s=%s", pod, role))
		switch role {
		case "master":
			primaries++
		case "slave", "replica":
			replicas++
		}
	}

	observed := strings.Join(observations, " ")
	if primaries != 1 || replicas != cfg.Replicas-1 {
		return models.CheckResult{
			Name: "replication-roles",
			Detail: fmt.Sprintf("expected 1 primary and %d replicas, observed %s",
				cfg.Replicas-1, observed),
		}
	}
	return models.CheckResult{Name: "replication-roles", Passed: true, Detail: observed}
}

// parseReplicationRole extracts the role field from INFO replication
// output.
func parseReplicationRole(info string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if after, found := strings.CutPrefix(line, "role:"); found {
			return after
		}
	}
	return "unknown"
}
