package launcher

// Arity table for srun (SLURM), ported from
// original_source/e4s_cl/cf/launchers/slurm.py (srun 20.02.1). srun
// owns /var/spool/slurm{,d}; those directories must never be shadowed
// by a user bind, hence ReservedDirectories.
func init() {
	Register(&Spec{
		Names: []string{"srun"},
		Arguments: map[string]int{
			"-A": 1, "-b": 1, "-c": 1, "--compress": 0, "-d": 1,
			"-e": 1, "-E": 0, "-H": 0, "-i": 1, "-I": 0,
			"--imediate": 0, "-J": 1, "-k": 0, "-K": 0, "-l": 0,
			"-L": 1, "-m": 1, "-M": 1, "--multi-prog": 0, "-n": 1,
			"-N": 1, "--nice": 0, "-o": 1, "-O": 0, "--overcommit": 0,
			"-p": 1, "--propagate": 0, "--pty": 0, "-q": 1, "-Q": 0,
			"--quiet": 0, "--quit-on-interrupt": 0, "-r": 1,
			"--reboot": 0, "-s": 0, "-S": 1, "--spread-job": 0,
			"-t": 1, "-T": 1, "-u": 0, "--unbuffered": 0,
			"--use-min-nodes": 0, "-v": 0, "--verbose": 0, "-W": 1,
			"-X": 0, "--disable-status": 0, "--contiguous": 0,
			"-C": 1, "-w": 1, "-x": 1, "-Z": 0, "--no-allocate": 0,
			"--exclusive": 0, "--resv-ports": 0, "-B": 1, "-G": 1,
			"-h": 0, "--help": 0, "--usage": 0, "-V": 0,
			"--version": 0,
		},
		ReservedDirectories: []string{"/var/spool/slurm", "/var/spool/slurmd"},
	})
}
