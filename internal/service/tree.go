package service

import "github.com/pribylovaa/go-forum/internal/models"

// BuildTree собирает дерево комментариев из плоского списка за O(n).
//
// Правила:
//   - каждый комментарий встречается в результате ровно один раз;
//   - дети идут в порядке входного списка;
//   - комментарий без родителя, с отсутствующим родителем или в цикле
//     родительских ссылок становится корнем;
//   - при повторе id в индекс попадает первое вхождение, остальные остаются
//     на своих местах.
func BuildTree(comments []models.Comment) []*models.CommentNode {
	nodes := make([]*models.CommentNode, len(comments))
	byID := make(map[int64]*models.CommentNode, len(comments))

	for i, c := range comments {
		n := &models.CommentNode{Comment: c, Children: []*models.CommentNode{}}
		nodes[i] = n
		if _, dup := byID[c.ID]; !dup {
			byID[c.ID] = n
		}
	}

	parent := make(map[*models.CommentNode]*models.CommentNode, len(nodes))
	for _, n := range nodes {
		if n.ParentID == nil {
			continue
		}
		if p, ok := byID[*n.ParentID]; ok && p != n {
			p.Children = append(p.Children, n)
			parent[n] = p
		}
	}

	// Узлы, недостижимые из корней, лежат на цикле: разрываем его,
	// поднимая первый такой узел (по входному порядку) в корни.
	seen := make(map[*models.CommentNode]bool, len(nodes))
	mark := func(root *models.CommentNode) {
		stack := []*models.CommentNode{root}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[n] {
				continue
			}
			seen[n] = true
			stack = append(stack, n.Children...)
		}
	}

	for _, n := range nodes {
		if _, ok := parent[n]; !ok {
			mark(n)
		}
	}

	for _, n := range nodes {
		if seen[n] {
			continue
		}
		p := parent[n]
		p.Children = detach(p.Children, n)
		delete(parent, n)
		mark(n)
	}

	roots := make([]*models.CommentNode, 0)
	for _, n := range nodes {
		if _, ok := parent[n]; !ok {
			roots = append(roots, n)
		}
	}

	return roots
}

func detach(children []*models.CommentNode, n *models.CommentNode) []*models.CommentNode {
	out := children[:0]
	for _, c := range children {
		if c != n {
			out = append(out, c)
		}
	}
	return out
}
