// Package dagviz renders a transaction's reachable node graph for
// operator debugging: a Graphviz dot representation, and optionally a
// rasterized PNG.
package dagviz

import (
	"bytes"
	"fmt"
	"io"

	"github.com/emicklei/dot"
	"github.com/goccy/go-graphviz"

	"github.com/fernvc/wcedit/dag"
)

// Options controls how much of the graph Render walks and draws.
type Options struct {
	// FollowPredecessors draws a dashed edge from each node to its
	// immediate predecessor, in addition to the solid parent/child
	// directory edges.
	FollowPredecessors bool
}

// Render walks every node reachable from root (via directory entries,
// and predecessors if requested) and returns its Graphviz dot source.
func Render(fs *dag.DagFS, root dag.NodeId, opts Options) (string, error) {
	graph := dot.NewGraph(dot.Directed)
	nodes := map[dag.NodeId]dot.Node{}

	var walk func(id dag.NodeId) (*dag.DagNode, error)
	walk = func(id dag.NodeId) (*dag.DagNode, error) {
		if _, ok := nodes[id]; ok {
			return dag.GetNode(fs, id)
		}
		node, err := dag.GetNode(fs, id)
		if err != nil {
			return nil, fmt.Errorf("dagviz: loading %s: %w", id, err)
		}
		gn := graph.Node(id.String()).Label(label(node))
		nodes[id] = gn

		if node.Kind() == dag.KindDir {
			entries, err := dag.DirectoryEntries(fs, node)
			if err != nil {
				return nil, fmt.Errorf("dagviz: reading entries of %s: %w", id, err)
			}
			for name, entry := range entries {
				childGn, exists := nodes[entry.ID]
				if !exists {
					if _, err := walk(entry.ID); err != nil {
						return nil, err
					}
					childGn = nodes[entry.ID]
				}
				graph.Edge(gn, childGn, name)
			}
		}

		if opts.FollowPredecessors {
			rev, err := node.Revision(fs)
			if err == nil && rev.PredecessorID != nil {
				predGn, exists := nodes[*rev.PredecessorID]
				if !exists {
					if _, err := walk(*rev.PredecessorID); err != nil {
						return nil, err
					}
					predGn = nodes[*rev.PredecessorID]
				}
				graph.Edge(gn, predGn, "pred").Attr("style", "dashed")
			}
		}
		return node, nil
	}

	if _, err := walk(root); err != nil {
		return "", err
	}
	return graph.String(), nil
}

func label(node *dag.DagNode) string {
	path := node.CreatedPath()
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s\n%s (%s)", node.ID(), path, node.Kind())
}

// RenderPNG rasterizes dot source (as produced by Render) to PNG bytes.
func RenderPNG(dotSource string) ([]byte, error) {
	gv := graphviz.New()
	graph, err := graphviz.ParseBytes([]byte(dotSource))
	if err != nil {
		return nil, fmt.Errorf("dagviz: parsing dot source: %w", err)
	}
	defer graph.Close()

	var buf bytes.Buffer
	if err := gv.Render(graph, graphviz.PNG, &buf); err != nil {
		return nil, fmt.Errorf("dagviz: rendering PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// WritePNG renders dot source to PNG and writes it to w.
func WritePNG(dotSource string, w io.Writer) error {
	data, err := RenderPNG(dotSource)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
