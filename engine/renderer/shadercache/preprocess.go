package shadercache

import (
	"fmt"
	"strings"
)

const (
	directiveIf    = "//#if "
	directiveIfNot = "//#ifnot "
	directiveElse  = "//#else"
	directiveEndIf = "//#endif"
)

type block struct {
	line   int
	parent bool
	taken  bool
	inElse bool
}

// Preprocess keeps or drops the lines between //#if NAME, //#ifnot NAME,
// //#else and //#endif directives depending on which names are defined.
// Blocks nest. Directive lines are removed from the output.
func Preprocess(source string, defines []string) (string, error) {
	defined := make(map[string]struct{}, len(defines))
	for _, d := range defines {
		defined[d] = struct{}{}
	}

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	stack := make([]block, 0, 4)
	active := true

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, directiveIfNot), strings.HasPrefix(trimmed, directiveIf):
			negate := strings.HasPrefix(trimmed, directiveIfNot)
			name := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(trimmed, directiveIfNot), directiveIf))
			if name == "" || strings.ContainsAny(name, " \t") {
				return "", fmt.Errorf("line %d: malformed directive %q", i+1, trimmed)
			}
			_, ok := defined[name]
			if negate {
				ok = !ok
			}
			stack = append(stack, block{line: i + 1, parent: active, taken: ok})
			active = active && ok

		case trimmed == directiveElse:
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: //#else without //#if", i+1)
			}
			top := &stack[len(stack)-1]
			if top.inElse {
				return "", fmt.Errorf("line %d: duplicate //#else for the block opened on line %d", i+1, top.line)
			}
			top.inElse = true
			active = top.parent && !top.taken

		case trimmed == directiveEndIf:
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: //#endif without //#if", i+1)
			}
			active = stack[len(stack)-1].parent
			stack = stack[:len(stack)-1]

		case strings.HasPrefix(trimmed, "//#"):
			return "", fmt.Errorf("line %d: unknown directive %q", i+1, trimmed)

		default:
			if active {
				out = append(out, line)
			}
		}
	}
	if len(stack) > 0 {
		return "", fmt.Errorf("line %d: //#if without //#endif", stack[len(stack)-1].line)
	}
	return strings.Join(out, "\n"), nil
}
