package launcher

// Arity table for mpirun/mpiexec, ported from
// original_source/e4s_cl/cf/launchers/mpirun.py.
func init() {
	Register(&Spec{
		Names: []string{"mpirun", "mpiexec"},
		Arguments: map[string]int{
			"-genv":       2,
			"-genvlist":   1,
			"-genvnone":   0,
			"-genvall":    0,
			"-f":          1,
			"-hosts":      1,
			"-wdir":       1,
			"-configfile": 1,
			"-env":        2,
			"-envlist":    1,
			"-envnone":    0,
			"-envall":     0,
			"-n":          1,
			"-np":         1,
		},
	})
}
