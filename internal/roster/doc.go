// Package roster tracks which participant sessions are present on a
// shared plan. Sessions decay from active to idle to retired as their
// events stop arriving, and the retired set establishes when vector
// clock entries are safe to prune.
package roster
