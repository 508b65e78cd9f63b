package services

import (
	"context"
	"sort"

	"github.com/cacheops/cachectl/lib/kubernetes"
	"github.com/cacheops/cachectl/logger"
	"github.com/cacheops/cachectl/models"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const zoneLabel = "topology.kubernetes.io/zone"

// TopologyService decides whether zone-spread scheduling is safe to
// enable by looking at the live cluster.
type TopologyService struct {
	client *kubernetes.Client
}

// NewTopologyService creates a new topology service instance.
func NewTopologyService(client *kubernetes.Client) *TopologyService {
	return &TopologyService{client: client}
}

// Detect queries node metadata once and derives a TopologyProfile.
// Failure to query, too few nodes, or missing zone labels all disable
// spreading. That is a conservative default, never an error: the profile
// reflects live cluster state and is recomputed on every render.
func (s *TopologyService) Detect(ctx context.Context, clusterType models.ClusterType) models.TopologyProfile {
	log := logger.WithComponent("topology")

	profile := models.TopologyProfile{}

	nodes, err := s.client.Clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		log.Warn().Err(err).Msg("node query failed, zone spreading disabled")
		return profile
	}

	profile.NodeCount = len(nodes.Items)
	zones := make(map[string]struct{})
	for _, node := range nodes.Items {
		if zone, ok := node.Labels[zoneLabel]; ok && zone != "" {
			zones[zone] = struct{}{}
		}
	}
	for zone := range zones {
		profile.Zones = append(profile.Zones, zone)
	}
	sort.Strings(profile.Zones)

	profile.SpreadEnabled = clusterType.SupportsZoneSpread() &&
		profile.NodeCount >= 2 &&
		len(profile.Zones) >= 1

	log.Info().
		Int("nodes", profile.NodeCount).
		Strs("zones", profile.Zones).
		Bool("spread", profile.SpreadEnabled).
		Msg("topology detected")
	return profile
}
