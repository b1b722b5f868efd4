package spec

// ContainerHandle is the engine-assigned container id returned by a launch.
type ContainerHandle string

// ContainerState is a snapshot read from one inspect call.
type ContainerState struct {
	Running bool
	// ExitCode is set only once the container has stopped.
	ExitCode *int
}

// Succeeded reports whether the container stopped with exit code zero.
// A running container has not succeeded.
func (s ContainerState) Succeeded() bool {
	return !s.Running && s.ExitCode != nil && *s.ExitCode == 0
}
