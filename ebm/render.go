package ebm

import (
	"fmt"
	"path"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

//binDescription formats one bin node of a rendered term.
func binDescription(iBin int, scores []float64) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("bin ", iBin))
	sb.WriteString("[")
	for _, val := range scores {
		sb.WriteString(fmt.Sprintf("  %6.2f,\n", val))
	}
	sb.WriteString("]\n")
	return sb.String()
}

//DrawTermGraph renders one term of the model as a star graph: the root
//names the feature tuple, one box per tensor bin carries its scores.
func (model *Model) DrawTermGraph(iTerm int) (*graphviz.Graphviz, *cgraph.Graph) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	HandleError(err)

	root, err := graph.CreateNode(fmt.Sprintf("term_%d", iTerm))
	HandleError(err)
	root.Set("label", fmt.Sprintf("features %v", model.TermFeatures[iTerm]))

	cScores := model.CScores
	scores := model.TermScores[iTerm]
	cTensorBins := len(scores) / cScores
	for iBin := 0; iBin < cTensorBins; iBin++ {
		node, err := graph.CreateNode(fmt.Sprintf("term_%d_bin_%d", iTerm, iBin))
		HandleError(err)
		node.Set("label", binDescription(iBin, scores[iBin*cScores:(iBin+1)*cScores]))
		node.Set("shape", "box")
		_, err = graph.CreateEdge("", root, node)
		HandleError(err)
	}
	return graphViz, graph
}

//RenderTerms writes one figure per term into picturesDirectory.
func (model *Model) RenderTerms(dumpPrefix, figureType, picturesDirectory string) {
	graphvizType := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]

	for iTerm := range model.TermFeatures {
		filename := fmt.Sprintf("%s_%05d.%s", dumpPrefix, iTerm, figureType)
		graphViz, graph := model.DrawTermGraph(iTerm)
		HandleError(graphViz.RenderFilename(graph, graphvizType, path.Join(picturesDirectory, filename)))
	}
}
