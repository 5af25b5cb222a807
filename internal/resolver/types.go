package resolver

import (
	"k8s.io/apimachinery/pkg/util/sets"
)

// ShareConfig describes how one module request participates in sharing.
//
// Only ShareKey, Import, Layer and IssuerLayer influence classification and
// key computation. The remaining fields are carried through for the
// consuming side (version selection, eager loading).
type ShareConfig struct {
	ShareKey    string `yaml:"shareKey,omitempty" json:"shareKey,omitempty"`
	Import      string `yaml:"import,omitempty" json:"import,omitempty"`
	Layer       string `yaml:"layer,omitempty" json:"layer,omitempty"`
	IssuerLayer string `yaml:"issuerLayer,omitempty" json:"issuerLayer,omitempty"`

	ShareScope      string `yaml:"shareScope,omitempty" json:"shareScope,omitempty"`
	RequiredVersion string `yaml:"requiredVersion,omitempty" json:"requiredVersion,omitempty"`
	Version         string `yaml:"version,omitempty" json:"version,omitempty"`
	Singleton       bool   `yaml:"singleton,omitempty" json:"singleton,omitempty"`
	StrictVersion   bool   `yaml:"strictVersion,omitempty" json:"strictVersion,omitempty"`
	Eager           bool   `yaml:"eager,omitempty" json:"eager,omitempty"`
}

// Entry pairs a request with its share configuration.
// Duplicate requests with different configs are legal.
type Entry struct {
	Request string
	Config  *ShareConfig
}

// Input is one resolution batch.
type Input struct {
	// Context is the directory relative requests are resolved against.
	Context string
	Configs []Entry
}

// MatchedConfigs holds the three output buckets.
//
// A bare request may appear under two keys in Unresolved (its composite key
// and the raw request); both entries point at the same *ShareConfig.
type MatchedConfigs struct {
	Resolved   map[string]*ShareConfig
	Unresolved map[string]*ShareConfig
	Prefixed   map[string]*ShareConfig
}

func NewMatchedConfigs() MatchedConfigs {
	return MatchedConfigs{
		Resolved:   map[string]*ShareConfig{},
		Unresolved: map[string]*ShareConfig{},
		Prefixed:   map[string]*ShareConfig{},
	}
}

// DependencyTrace is the set of paths a resolution touched, used by the
// host for rebuild invalidation.
type DependencyTrace struct {
	Files    sets.Set[string]
	Contexts sets.Set[string]
	Missing  sets.Set[string]
}

func NewDependencyTrace() DependencyTrace {
	return DependencyTrace{
		Files:    sets.New[string](),
		Contexts: sets.New[string](),
		Missing:  sets.New[string](),
	}
}

// Merge adds every path of other into t. Nil sets on t are allocated.
func (t *DependencyTrace) Merge(other DependencyTrace) {
	if t.Files == nil {
		t.Files = sets.New[string]()
	}
	if t.Contexts == nil {
		t.Contexts = sets.New[string]()
	}
	if t.Missing == nil {
		t.Missing = sets.New[string]()
	}
	t.Files.Insert(other.Files.UnsortedList()...)
	t.Contexts.Insert(other.Contexts.UnsortedList()...)
	t.Missing.Insert(other.Missing.UnsortedList()...)
}

// Len returns the total number of recorded paths.
func (t DependencyTrace) Len() int {
	return t.Files.Len() + t.Contexts.Len() + t.Missing.Len()
}

// Plan is the outcome of one batch.
type Plan struct {
	Matched MatchedConfigs
	Trace   DependencyTrace
	// Errors holds one entry per relative request that could not be
	// resolved, in the order failures were observed.
	Errors []*ResolutionError
}
