package optimizer

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/squareup/planopt/conf"
	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/plan"
	"github.com/squareup/planopt/tree"
)

// ReplaceWithOrderPreservingVariants replaces operators that lose their input ordering with variants that keep
// it, when doing so makes a Sort further up redundant or lets a plan over an unbounded source run at all.
//
// A Repartition is swapped for a Repartition that preserves order, and a CoalescePartitions for a
// SortPreservingMerge. The swaps are first collected into an alternative subplan that is handed up the tree, and
// only take effect if the alternative reaches a Sort whose ordering it satisfies, in which case it replaces the
// Sort.
type ReplaceWithOrderPreservingVariants struct {
	// RepartitionPreferred allows the Repartition swap to remove a sort on bounded input even when
	// conf.Config.PreferExistingSort is off.
	RepartitionPreferred bool
	// MergePreferred does the same for the CoalescePartitions swap.
	MergePreferred bool
	metrics        *optimizerMetrics
}

// NewReplaceWithOrderPreservingVariants returns the rule with both swaps only made to fix pipelines, unless the
// config prefers existing sorts.
func NewReplaceWithOrderPreservingVariants() *ReplaceWithOrderPreservingVariants {
	return &ReplaceWithOrderPreservingVariants{metrics: noopMetrics()}
}

func (r *ReplaceWithOrderPreservingVariants) Name() string {
	return "ReplaceWithOrderPreservingVariants"
}

func (r *ReplaceWithOrderPreservingVariants) Optimize(root plan.Node, cfg *conf.Config) (plan.Node, error) {
	m := r.metrics
	if m == nil {
		m = noopMetrics()
	}
	up := func(node plan.Node, connected bool, alternatives []plan.Node) (plan.Node, plan.Node, error) {
		return r.replaceWithOrderPreservingVariantsUp(node, connected, alternatives, cfg, m)
	}
	newRoot, alternative, err := tree.TransformWithPayload[bool, plan.Node](root, false,
		propagateOrderMaintainingConnectionsDown, up)
	if err != nil {
		return nil, err
	}
	if alternative != nil {
		log.Tracef("discarding alternative that did not reach a sort: %s", alternative.Describe())
		m.alternativesDiscarded.Inc()
	}
	return newRoot, nil
}

type nodeKind int

const (
	kindOther nodeKind = iota
	kindSort
	kindRepartition
	kindCoalescePartitions
)

func kindOf(node plan.Node) nodeKind {
	switch node.(type) {
	case *plan.Sort:
		return kindSort
	case *plan.Repartition:
		return kindRepartition
	case *plan.CoalescePartitions:
		return kindCoalescePartitions
	default:
		return kindOther
	}
}

// propagateOrderMaintainingConnectionsDown marks each edge that is reachable from a Sort through operators that
// keep their input order, or could keep it once swapped for their order preserving variant.
func propagateOrderMaintainingConnectionsDown(node plan.Node, connected bool) (plan.Node, []bool, bool, error) {
	children := node.Children()
	connections := make([]bool, len(children))
	kind := kindOf(node)
	if kind == kindSort {
		for i := range connections {
			connections[i] = true
		}
		return node, connections, connected, nil
	}
	maintains := node.MaintainsInputOrder()
	if len(maintains) != len(children) {
		return nil, nil, false, errors.WithStack(errors.NewInternalError(fmt.Sprintf(
			"%s reports input order for %d inputs but has %d", node.Describe(), len(maintains), len(children))))
	}
	replaceable := kind == kindRepartition || kind == kindCoalescePartitions
	for i, m := range maintains {
		connections[i] = connected && (m || replaceable)
	}
	return node, connections, connected, nil
}

func (r *ReplaceWithOrderPreservingVariants) replaceWithOrderPreservingVariantsUp(node plan.Node, connected bool,
	alternatives []plan.Node, cfg *conf.Config, m *optimizerMetrics) (plan.Node, plan.Node, error) {
	// unbounded input always needs the variant, or the pipeline cannot make progress
	useVariant := cfg.PreferExistingSort || node.Unbounded()

	switch kindOf(node) {
	case kindSort:
		sort := node.(*plan.Sort)
		alternative := alternatives[0]
		if alternative == nil {
			return node, nil, nil
		}
		if alternative.EquivalenceProperties().OrderingSatisfy(sort.Ordering()) {
			log.Debugf("removing %s, its input is already ordered after swapping in order preserving variants",
				sort.Describe())
			m.sortsRemoved.Inc()
			return alternative, nil, nil
		}
		m.alternativesDiscarded.Inc()
		return node, nil, nil
	case kindRepartition:
		if connected && !node.MaintainsInputOrder()[0] && (r.RepartitionPreferred || useVariant) {
			repartition := node.(*plan.Repartition)
			variant, err := plan.NewRepartition(alternativeOrChild(alternatives, node), repartition.Partitioning())
			if err != nil {
				return nil, nil, errors.WithStack(err)
			}
			return node, variant.WithPreserveOrder(), nil
		}
	case kindCoalescePartitions:
		if connected && (r.MergePreferred || useVariant) {
			child := alternativeOrChild(alternatives, node)
			ordering := child.OutputOrdering()
			if len(ordering) == 0 {
				return node, nil, nil
			}
			variant, err := plan.NewSortPreservingMerge(child, ordering)
			if err != nil {
				return nil, nil, errors.WithStack(err)
			}
			return node, variant, nil
		}
	}
	return r.extendAlternative(node, alternatives)
}

// extendAlternative rebuilds node over its children's alternatives, when any child has one.
func (r *ReplaceWithOrderPreservingVariants) extendAlternative(node plan.Node, alternatives []plan.Node) (plan.Node, plan.Node, error) {
	found := false
	for _, alt := range alternatives {
		if alt != nil {
			found = true
			break
		}
	}
	if !found {
		return node, nil, nil
	}
	children := node.Children()
	newChildren := make([]plan.Node, len(children))
	for i, child := range children {
		if alternatives[i] != nil {
			newChildren[i] = alternatives[i]
		} else {
			newChildren[i] = child
		}
	}
	alternative, err := node.WithNewChildren(newChildren)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	return node, alternative, nil
}

func alternativeOrChild(alternatives []plan.Node, node plan.Node) plan.Node {
	if alternatives[0] != nil {
		return alternatives[0]
	}
	return node.Children()[0]
}
