package gc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/corevm/internal/gc"
)

// node is a minimal heap object for exercising the collector in
// isolation, independent of internal/value's richer object set.
type node struct {
	gc.Header
	next *node
}

func (n *node) Trace(m *gc.Marker) {
	if n.next != nil {
		m.Visit(n.next)
	}
}

type nodeDef struct{ next *node }

func (d nodeDef) Size() uintptr      { return 32 }
func (d nodeDef) Init() gc.Traceable { return &node{next: d.next} }

// rootSlice is a non-headered composite root (analogous to the
// evaluation stack or globals table) that always retraces its contents.
type rootSlice struct{ nodes []*node }

func (r *rootSlice) Trace(m *gc.Marker) {
	for _, n := range r.nodes {
		if n != nil {
			m.Visit(n)
		}
	}
}

func TestCollect_DropsUnreachableObjects(t *testing.T) {
	h := gc.NewWithThreshold(1 << 20)
	root := &rootSlice{}

	kept := h.AllocAndCollect([]gc.Traceable{root}, nodeDef{}).(*node)
	root.nodes = append(root.nodes, kept)

	// Allocate an object with nothing pointing at it.
	h.AllocAndCollect([]gc.Traceable{root}, nodeDef{})

	require.Equal(t, 2, h.Stats().Live)
	h.Collect([]gc.Traceable{root})
	assert.Equal(t, 1, h.Stats().Live, "the unrooted node should have been swept")
}

func TestCollect_TracesThroughChains(t *testing.T) {
	h := gc.NewWithThreshold(1 << 20)
	root := &rootSlice{}

	tail := h.AllocAndCollect([]gc.Traceable{root}, nodeDef{}).(*node)
	head := h.AllocAndCollect([]gc.Traceable{root}, nodeDef{next: tail}).(*node)
	root.nodes = []*node{head}

	h.Collect([]gc.Traceable{root})
	assert.Equal(t, 2, h.Stats().Live, "tail is reachable only through head's pointer")
}

func TestAllocAndCollect_RunsBeforeThresholdExceeded(t *testing.T) {
	h := gc.NewWithThreshold(64) // two 32-unit objects fit exactly

	root := &rootSlice{}
	a := h.AllocAndCollect([]gc.Traceable{root}, nodeDef{}).(*node)
	root.nodes = []*node{a}

	// b is never rooted; allocated sits exactly at the threshold after it.
	h.AllocAndCollect([]gc.Traceable{root}, nodeDef{})
	require.Equal(t, 0, h.Stats().Collections)

	// This third allocation would push allocated past the threshold,
	// forcing a collection first — which sweeps the unrooted b before c
	// is even created.
	c := h.AllocAndCollect([]gc.Traceable{root}, nodeDef{}).(*node)
	root.nodes = append(root.nodes, c)

	assert.Equal(t, 1, h.Stats().Collections)
	assert.Equal(t, 2, h.Stats().Live, "only a and c survive; the unrooted b was swept")
}

func TestAllocAndCollect_PanicsOnNonHeaderedInit(t *testing.T) {
	assert.Panics(t, func() {
		gc.New().AllocAndCollect(nil, badDef{})
	})
}

type badObj struct{}

func (badObj) Trace(m *gc.Marker) {}

type badDef struct{}

func (badDef) Size() uintptr      { return 8 }
func (badDef) Init() gc.Traceable { return badObj{} }
