package plan

import (
	"fmt"
	"strings"

	"github.com/twmb/murmur3"
)

// Lines renders the plan one node per line, children indented two spaces below their parent.
func Lines(root Node) []string {
	var lines []string
	var walk func(n Node, depth int)
	walk = func(n Node, depth int) {
		lines = append(lines, strings.Repeat("  ", depth)+n.Describe())
		for _, child := range n.Children() {
			walk(child, depth+1)
		}
	}
	walk(root, 0)
	return lines
}

func Format(root Node) string {
	return strings.Join(Lines(root), "\n")
}

// Fingerprint identifies a plan by the hash of its rendering. Two plans with the same fingerprint display
// identically.
func Fingerprint(root Node) uint64 {
	return murmur3.Sum64([]byte(Format(root)))
}

func FingerprintString(root Node) string {
	return fmt.Sprintf("%016x", Fingerprint(root))
}
