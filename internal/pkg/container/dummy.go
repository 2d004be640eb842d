package container

// dummyBackend records its invocations without running anything, ported
// from original_source/e4s_cl/cf/containers/dummy.py's DEBUG_BACKEND
// DummyContainer, used by this package's own tests and by any caller
// exercising the backend-selection path without a real runtime present.
type dummyBackend struct {
	base
	LastCommand []string
}

func newDummyBackend(image string) Backend { return &dummyBackend{base: newBase(image)} }

func (b *dummyBackend) Name() string { return "dummy" }

func (b *dummyBackend) BindFile(origin, destination string, access Access) {
	b.bindFile(origin, destination, access)
}
func (b *dummyBackend) SetEnv(key, value string)      { b.setEnv(key, value) }
func (b *dummyBackend) AddLDPreload(path string)       { b.addLDPreload(path) }
func (b *dummyBackend) AddLDLibraryPath(path string)   { b.addLDLibraryPath(path) }

func (b *dummyBackend) Run(command []string) (int, error) {
	b.LastCommand = command
	return 0, nil
}

func (b *dummyBackend) SupportsFileBinding() bool     { return true }
func (b *dummyBackend) ImageVersionInfo() string      { return "" }
func (b *dummyBackend) RunScript(script string) string { return "" }

func init() {
	register("dummy", newDummyBackend, false)
}
