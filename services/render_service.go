package services

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/cacheops/cachectl/logger"
	"github.com/cacheops/cachectl/models"
	"github.com/cacheops/cachectl/utils"
)

// RenderService produces the published manifest file. Rendering is a
// pure function of (DeploymentConfig, TopologyProfile): identical inputs
// produce byte-identical output.
type RenderService struct {
	// kubectlPath overrides the dry-run validator binary; tests point it
	// at a stub, an empty value means look up "kubectl" on PATH.
	kubectlPath string
}

// NewRenderService creates a new render service instance.
func NewRenderService() *RenderService {
	return &RenderService{}
}

// BuildObjects returns the manifest resource set in apply order. The
// credential Secret and the storage class are provisioned out of band by
// the applier and are deliberately absent here.
func (s *RenderService) BuildObjects(cfg models.DeploymentConfig, topology models.TopologyProfile) []interface{} {
	return []interface{}{
		utils.BuildNamespace(cfg),
		utils.BuildServiceAccount(cfg),
		utils.BuildHeadlessService(cfg),
		utils.BuildClientService(cfg),
		utils.BuildNetworkPolicy(cfg),
		utils.BuildDisruptionBudget(cfg),
		utils.BuildStatefulSet(cfg, topology),
	}
}

// Render builds the manifest set, writes it to a temporary file,
// validates it with the cluster dry-run check and atomically replaces
// the published path. A failed validation leaves the previously
// published manifest untouched.
func (s *RenderService) Render(cfg models.DeploymentConfig, topology models.TopologyProfile) (models.RenderedManifestSet, error) {
	log := logger.WithComponent("render")
	var set models.RenderedManifestSet

	objects := s.BuildObjects(cfg, topology)
	content, err := utils.SerializeManifests(objects)
	if err != nil {
		return set, fmt.Errorf("failed to serialize manifests: %w", err)
	}

	tmpPath, err := utils.WriteManifestTemp(cfg.ManifestPath, content)
	if err != nil {
		return set, err
	}

	validated, err := s.validate(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return set, err
	}

	if err := utils.PublishManifest(tmpPath, cfg.ManifestPath); err != nil {
		return set, err
	}

	set = models.RenderedManifestSet{
		Path:      cfg.ManifestPath,
		Hash:      utils.HashManifests(content),
		Validated: validated,
	}
	for _, obj := range objects {
		set.Resources = append(set.Resources, fmt.Sprintf("%T", obj))
	}

	log.Info().
		Str("path", set.Path).
		Str("hash", set.Hash[:12]).
		Int("resources", len(objects)).
		Bool("persistence", cfg.PersistenceEnabled).
		Bool("spread", topology.SpreadEnabled).
		Msg("manifest set published")
	return set, nil
}

// validate runs the client-side dry-run check against the temp file. A
// missing validator binary downgrades to a warning: the render still
// publishes, only unvalidated. A validator rejection is fatal.
func (s *RenderService) validate(path string) (bool, error) {
	log := logger.WithComponent("render")

	kubectl := s.kubectlPath
	if kubectl == "" {
		found, err := exec.LookPath("kubectl")
		if err != nil {
			log.Warn().Msg("kubectl not found, skipping dry-run validation")
			return false, nil
		}
		kubectl = found
	}

	cmd := exec.Command(kubectl, "apply", "--dry-run=client", "--validate=true", "-f", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return false, &models.ValidationError{Output: string(output)}
	}
	return true, nil
}
