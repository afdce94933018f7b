package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// validVotingStrategies mirrors pkg/vote's Strategy constants.
var validVotingStrategies = map[string]bool{
	"majority":      true,
	"plurality":     true,
	"unanimity":     true,
	"weighted":      true,
	"threshold":     true,
	"supermajority": true,
	"ranked_choice": true,
	"approval":      true,
}

// validSwarmStrategies mirrors pkg/swarm's Strategy constants.
var validSwarmStrategies = map[string]bool{
	"particle_swarm": true,
	"ant_colony":     true,
	"bee_colony":     true,
}

// validProcessModes mirrors pkg/crew's ProcessMode constants.
var validProcessModes = map[string]bool{
	"sequential":           true,
	"parallel":             true,
	"hierarchical":         true,
	"democratic_consensus": true,
}

// OrchestrationConfig is the top-level orchestration.yaml structure,
// covering the crew, swarm, voting, and consensus subsystems.
type OrchestrationConfig struct {
	// Version is the config schema version. Must be "1".
	Version   string          `yaml:"version"`
	Crew      CrewConfig      `yaml:"crew"`
	Swarm     SwarmConfig     `yaml:"swarm"`
	Voter     VoterConfig     `yaml:"voter"`
	Consensus ConsensusConfig `yaml:"consensus"`
}

// CrewConfig mirrors pkg/crew.Config's externally tunable fields.
type CrewConfig struct {
	Name             string   `yaml:"name"`
	Process          string   `yaml:"process"`
	RequiredRoles    []string `yaml:"required_roles"`
	AllowDelegation  bool     `yaml:"allow_delegation"`
	RequireReview    bool     `yaml:"require_review"`
	VotingEnabled    bool     `yaml:"voting_enabled"`
	VotingStrategy   string   `yaml:"voting_strategy"`
	QualityThreshold float64  `yaml:"quality_threshold"`
	MaxRetries       int      `yaml:"max_retries"`
	Timeout          Duration `yaml:"timeout"`
}

// SwarmConfig tunes the swarm coordinator's optimization algorithms.
type SwarmConfig struct {
	Strategy        string  `yaml:"strategy"`
	PopulationSize  int     `yaml:"population_size"`
	MaxIterations   int     `yaml:"max_iterations"`
	InertiaWeight   float64 `yaml:"inertia_weight"`
	CognitiveWeight float64 `yaml:"cognitive_weight"`
	SocialWeight    float64 `yaml:"social_weight"`
}

// VoterConfig tunes the default Tally behavior used across swarm,
// crew, and solver ballots.
type VoterConfig struct {
	Strategy      string  `yaml:"strategy"`
	Threshold     float64 `yaml:"threshold"`
	MinVotes      int     `yaml:"min_votes"`
	RequireQuorum bool    `yaml:"require_quorum"`
	QuorumShare   float64 `yaml:"quorum_share"`
}

// ConsensusConfig tunes the iterative-refinement builder.
type ConsensusConfig struct {
	Strategy             string  `yaml:"strategy"`
	MaxRounds            int     `yaml:"max_rounds"`
	ConsensusThreshold   float64 `yaml:"consensus_threshold"`
	ImprovementThreshold float64 `yaml:"improvement_threshold"`
}

// keySchema describes the set of keys a YAML mapping may contain.
// A nil value means the key is a leaf; a non-nil value recurses into
// a nested mapping with its own allowed keys.
type keySchema map[string]keySchema

var orchestrationSchema = keySchema{
	"version": nil,
	"crew": {
		"name":              nil,
		"process":           nil,
		"required_roles":    nil,
		"allow_delegation":  nil,
		"require_review":    nil,
		"voting_enabled":    nil,
		"voting_strategy":   nil,
		"quality_threshold": nil,
		"max_retries":       nil,
		"timeout":           nil,
	},
	"swarm": {
		"strategy":         nil,
		"population_size":  nil,
		"max_iterations":   nil,
		"inertia_weight":   nil,
		"cognitive_weight": nil,
		"social_weight":    nil,
	},
	"voter": {
		"strategy":       nil,
		"threshold":      nil,
		"min_votes":      nil,
		"require_quorum": nil,
		"quorum_share":   nil,
	},
	"consensus": {
		"strategy":              nil,
		"max_rounds":            nil,
		"consensus_threshold":   nil,
		"improvement_threshold": nil,
	},
}

// LoadOrchestration reads an orchestration.yaml file, performs environment
// variable substitution, rejects unknown keys, parses the YAML, and
// validates the result.
func LoadOrchestration(path string) (*OrchestrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	substituted := Substitute(string(data))

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(substituted), &root); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := checkUnknownKeys(&root, orchestrationSchema, ""); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	var cfg OrchestrationConfig
	if err := yaml.Unmarshal([]byte(substituted), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// checkUnknownKeys walks a parsed YAML document and returns an error
// naming the first key that isn't present in schema at its nesting level.
func checkUnknownKeys(node *yaml.Node, schema keySchema, path string) error {
	if node == nil {
		return nil
	}
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		return checkUnknownKeys(node.Content[0], schema, path)
	}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		sub, ok := schema[keyNode.Value]
		if !ok {
			loc := keyNode.Value
			if path != "" {
				loc = path + "." + keyNode.Value
			}
			return fmt.Errorf("unknown field %q (line %d)", loc, keyNode.Line)
		}
		if sub == nil {
			continue
		}
		childPath := keyNode.Value
		if path != "" {
			childPath = path + "." + keyNode.Value
		}
		if err := checkUnknownKeys(valNode, sub, childPath); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that the orchestration configuration is well-formed.
// Zero values for unset sections are accepted; each subsystem applies
// its own defaults downstream (see the pkg/crew and pkg/swarm
// withDefaults helpers, and the defaults inside vote.Tally and
// consensus.Builder.Refine).
func (c *OrchestrationConfig) Validate() error {
	if c.Version != "1" {
		return fmt.Errorf("config: unsupported version %q (expected \"1\")", c.Version)
	}
	if c.Crew.Process != "" && !validProcessModes[c.Crew.Process] {
		return fmt.Errorf("config: crew: unsupported process %q", c.Crew.Process)
	}
	if c.Crew.VotingStrategy != "" && !validVotingStrategies[c.Crew.VotingStrategy] {
		return fmt.Errorf("config: crew: unsupported voting_strategy %q", c.Crew.VotingStrategy)
	}
	if c.Crew.QualityThreshold < 0 || c.Crew.QualityThreshold > 1 {
		return fmt.Errorf("config: crew: quality_threshold must be in [0,1], got %v", c.Crew.QualityThreshold)
	}
	if c.Swarm.Strategy != "" && !validSwarmStrategies[c.Swarm.Strategy] {
		return fmt.Errorf("config: swarm: unsupported strategy %q", c.Swarm.Strategy)
	}
	if c.Voter.Strategy != "" && !validVotingStrategies[c.Voter.Strategy] {
		return fmt.Errorf("config: voter: unsupported strategy %q", c.Voter.Strategy)
	}
	if c.Voter.Threshold < 0 || c.Voter.Threshold > 1 {
		return fmt.Errorf("config: voter: threshold must be in [0,1], got %v", c.Voter.Threshold)
	}
	if c.Consensus.Strategy != "" && !validVotingStrategies[c.Consensus.Strategy] {
		return fmt.Errorf("config: consensus: unsupported strategy %q", c.Consensus.Strategy)
	}
	if c.Consensus.ConsensusThreshold < 0 || c.Consensus.ConsensusThreshold > 1 {
		return fmt.Errorf("config: consensus: consensus_threshold must be in [0,1], got %v", c.Consensus.ConsensusThreshold)
	}
	return nil
}
