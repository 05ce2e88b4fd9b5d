package finetune

import "math/rand"

// Split shuffles subthemes with rng and holds out int(n*ratio) of them.
// Items are split whole, so no subtheme appears on both sides.
func Split(items []GoldItem, ratio float64, rng *rand.Rand) (train, val []GoldItem) {
	order := rng.Perm(len(items))
	n := min(max(int(float64(len(items))*ratio), 0), len(items))
	held := make(map[int]bool, n)
	for _, i := range order[:n] {
		held[i] = true
	}
	for i, it := range items {
		if held[i] {
			val = append(val, it)
		} else {
			train = append(train, it)
		}
	}
	return train, val
}
