package launcher

// Arity table for aprun (ALPS), ported from
// original_source/e4s_cl/cf/launchers/aprun.py (aprun 6.6.59).
func init() {
	Register(&Spec{
		Names: []string{"aprun"},
		Arguments: map[string]int{
			":":                        0,
			"-a":                       1,
			"--access-mode":            1,
			"--architecture":           1,
			"-b":                       0,
			"-B":                       0,
			"--batch-args":             0,
			"--bypass-app-transfer":    0,
			"-C":                       0,
			"--cc":                     1,
			"--cp":                     1,
			"--cpu-binding":            1,
			"--cpu-binding-file":       1,
			"--cpus-per-cu":            1,
			"--cpus-per-pe":            1,
			"--cpu-time-limit":         1,
			"-D":                       0,
			"-d":                       1,
			"--debug level":            0,
			"-e":                       1,
			"-E":                       1,
			"--environment-override":   1,
			"--exclude-node-list":      1,
			"--exclude-node-list-file": 1,
			"-F":                       1,
			"--help":                   0,
			"-j":                       1,
			"-L":                       1,
			"-l":                       1,
			"-m":                       1,
			"--memory-per-pe":          1,
			"--mpmd-env":               1,
			"-N":                       1,
			"-n":                       1,
			"--node-list":              1,
			"--node-list-file":         1,
			"-P":                       0,
			"-p":                       1,
			"--pes":                    1,
			"--pes-per-node":           1,
			"--pes-per-numa-node":      1,
			"--p-governor":             1,
			"--pipes pipes":            0,
			"--protection-domain":      1,
			"--p-state":                1,
			"-q":                       0,
			"--quiet":                  0,
			"-r":                       1,
			"-R":                       1,
			"--reconnect":              0,
			"--relaunch":               1,
			"-S":                       1,
			"--specialized-cpus":       1,
			"--ss":                     0,
			"--strict-memory-containment": 0,
			"--sync-output":               0,
			"-T":                          0,
			"-t":                          1,
			"--version":                   0,
			"--wdir":                      1,
			"-z":                          0,
			"-Z":                          1,
			"--zone-sort":                 0,
			"--zone-sort-secs":            1,
		},
	})
}
