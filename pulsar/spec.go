package pulsar

import (
	"fmt"
	"maps"
	"os"

	"github.com/pulsarlabs/pulsartest/cluster"
	"gopkg.in/yaml.v3"
)

// FunctionRuntime selects the isolation mode for function workers.
type FunctionRuntime string

const (
	// ProcessRuntime runs each function in its own process.
	ProcessRuntime FunctionRuntime = "process"
	// ThreadRuntime runs functions as threads of one shared group.
	ThreadRuntime FunctionRuntime = "thread"
)

// ClusterSpec describes the desired shape of a Pulsar test cluster. It is
// plain data; NewCluster copies it and never mutates the caller's value.
type ClusterSpec struct {
	ClusterName        string          `yaml:"clusterName"`
	Image              string          `yaml:"image"`
	NumBookies         int             `yaml:"numBookies"`
	NumBrokers         int             `yaml:"numBrokers"`
	NumFunctionWorkers int             `yaml:"numFunctionWorkers"`
	FunctionRuntime    FunctionRuntime `yaml:"functionRuntime"`

	// ResourceMounts maps host paths to container paths, mounted into
	// every Pulsar node. Relative host paths resolve against the module
	// root.
	ResourceMounts map[string]string `yaml:"resourceMounts"`

	// ExternalServices maps network aliases to auxiliary containers that
	// join the cluster network and lifecycle. The orchestrator makes no
	// assumption about what runs inside them.
	ExternalServices map[string]cluster.Config `yaml:"externalServices"`
}

// DefaultSpec returns a spec for a small cluster: two bookies, two brokers,
// no function workers.
func DefaultSpec(clusterName string) ClusterSpec {
	return ClusterSpec{
		ClusterName:     clusterName,
		Image:           DefaultImage,
		NumBookies:      2,
		NumBrokers:      2,
		FunctionRuntime: ProcessRuntime,
	}
}

// Validate reports the first problem with the spec. It is called before
// any resource is allocated.
func (s *ClusterSpec) Validate() error {
	if s.ClusterName == "" {
		return fmt.Errorf("cluster name must not be empty")
	}
	if s.NumBookies < 0 {
		return fmt.Errorf("numBookies must not be negative, got %d", s.NumBookies)
	}
	if s.NumBrokers < 0 {
		return fmt.Errorf("numBrokers must not be negative, got %d", s.NumBrokers)
	}
	if s.NumFunctionWorkers < 0 {
		return fmt.Errorf("numFunctionWorkers must not be negative, got %d", s.NumFunctionWorkers)
	}
	switch s.FunctionRuntime {
	case "", ProcessRuntime, ThreadRuntime:
	default:
		return fmt.Errorf("unknown function runtime %q", s.FunctionRuntime)
	}
	return nil
}

// withDefaults returns a copy with empty fields filled in and all maps
// deep-copied, so later caller mutation cannot leak into the cluster.
func (s ClusterSpec) withDefaults() ClusterSpec {
	out := s
	if out.Image == "" {
		out.Image = DefaultImage
	}
	if out.FunctionRuntime == "" {
		out.FunctionRuntime = ProcessRuntime
	}
	out.ResourceMounts = maps.Clone(s.ResourceMounts)
	if s.ExternalServices != nil {
		out.ExternalServices = make(map[string]cluster.Config, len(s.ExternalServices))
		for alias, cfg := range s.ExternalServices {
			out.ExternalServices[alias] = cfg.Clone()
		}
	}
	return out
}

// LoadSpecFile reads a ClusterSpec from a YAML file.
func LoadSpecFile(path string) (ClusterSpec, error) {
	var spec ClusterSpec
	b, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("reading spec file: %w", err)
	}
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return spec, fmt.Errorf("parsing spec file %s: %w", path, err)
	}
	return spec, nil
}
