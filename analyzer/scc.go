package analyzer

// solveSCC runs Tarjan's algorithm over the block graph and condenses
// every strongly-connected component into its entry block, exactly as
// spec §4.3 / graph.rs's tarjan describe: loops become straight-line
// sequences of member blocks executed once, bounding recursion depth
// while preserving field-tree growth inside the loop body.
func (g *graph) solveSCC() {
	if len(g.blocks) == 0 {
		return
	}
	n := len(g.blocks)
	dfn := make([]int, n)
	low := make([]int, n)
	inStack := make([]bool, n)
	var stack []int
	g.count = 0
	g.tarjan(0, &stack, inStack, dfn, low)
}

func (g *graph) tarjan(index int, stack *[]int, inStack []bool, dfn, low []int) {
	g.count++
	dfn[index] = g.count
	low[index] = g.count
	inStack[index] = true
	*stack = append(*stack, index)

	for _, target := range sortedKeys(g.blocks[index].next) {
		if dfn[target] == 0 {
			g.tarjan(target, stack, inStack, dfn, low)
			if low[target] < low[index] {
				low[index] = low[target]
			}
		} else if inStack[target] {
			if dfn[target] < low[index] {
				low[index] = dfn[target]
			}
		}
	}

	if dfn[index] != low[index] {
		return
	}

	for {
		top := (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]
		g.fatherBlock[top] = index
		inStack[top] = false
		if top == index {
			break
		}
		for next := range g.blocks[top].next {
			g.blocks[index].next[next] = true
		}
		g.blocks[index].subBlocks = append(g.blocks[index].subBlocks, top)
		g.blocks[index].subBlocks = append(g.blocks[index].subBlocks, g.blocks[top].subBlocks...)
	}
	reverse(g.blocks[index].subBlocks)

	for b := range g.blocks[index].next {
		if g.fatherBlock[b] == index {
			delete(g.blocks[index].next, b)
		}
	}
}

func reverse(xs []int) {
	for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
	}
}
