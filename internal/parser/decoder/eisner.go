// Package decoder finds maximum-scoring dependency trees over arc scores.
package decoder

import "math"

const (
	left  = 0 // head at the right end of the span
	right = 1 // head at the left end of the span
)

// Eisner returns the highest-scoring projective tree for an arc score matrix
// where scores[h][m] scores token h governing token m, and index 0 is the
// virtual root. The result holds the head of every position; heads[0] is -1.
func Eisner(scores [][]float64) []int {
	n := len(scores) - 1
	heads := make([]int, n+1)
	heads[0] = -1
	if n <= 0 {
		return heads
	}

	size := n + 1
	complete := newChart(size)
	incomplete := newChart(size)
	completeBP := newBackpointers(size)
	incompleteBP := newBackpointers(size)

	for k := 1; k < size; k++ {
		for s := 0; s+k < size; s++ {
			t := s + k

			best, arg := math.Inf(-1), s
			for r := s; r < t; r++ {
				if v := complete[s][r][right] + complete[r+1][t][left]; v > best {
					best, arg = v, r
				}
			}
			// The root never takes a head.
			if s == 0 {
				incomplete[s][t][left] = math.Inf(-1)
			} else {
				incomplete[s][t][left] = best + scores[t][s]
			}
			incomplete[s][t][right] = best + scores[s][t]
			incompleteBP[s][t][left] = arg
			incompleteBP[s][t][right] = arg

			best, arg = math.Inf(-1), s
			for r := s; r < t; r++ {
				if v := complete[s][r][left] + incomplete[r][t][left]; v > best {
					best, arg = v, r
				}
			}
			complete[s][t][left] = best
			completeBP[s][t][left] = arg

			best, arg = math.Inf(-1), t
			for r := s + 1; r <= t; r++ {
				if v := incomplete[s][r][right] + complete[r][t][right]; v > best {
					best, arg = v, r
				}
			}
			complete[s][t][right] = best
			completeBP[s][t][right] = arg
		}
	}

	b := backtracker{completeBP: completeBP, incompleteBP: incompleteBP, heads: heads}
	b.complete(0, n, right)
	return heads
}

type backtracker struct {
	completeBP   [][][2]int
	incompleteBP [][][2]int
	heads        []int
}

func (b *backtracker) complete(s, t, dir int) {
	if s == t {
		return
	}
	r := b.completeBP[s][t][dir]
	if dir == left {
		b.complete(s, r, left)
		b.incomplete(r, t, left)
		return
	}
	b.incomplete(s, r, right)
	b.complete(r, t, right)
}

func (b *backtracker) incomplete(s, t, dir int) {
	if s == t {
		return
	}
	r := b.incompleteBP[s][t][dir]
	if dir == left {
		b.heads[s] = t
	} else {
		b.heads[t] = s
	}
	b.complete(s, r, right)
	b.complete(r+1, t, left)
}

func newChart(size int) [][][2]float64 {
	c := make([][][2]float64, size)
	for i := range c {
		c[i] = make([][2]float64, size)
	}
	return c
}

func newBackpointers(size int) [][][2]int {
	c := make([][][2]int, size)
	for i := range c {
		c[i] = make([][2]int, size)
	}
	return c
}
