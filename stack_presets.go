package optfactory

const (
	// Recommended priorities for common layering patterns. Higher numbers win.
	PrioritySystem  = 100
	PriorityProject = 200
	PriorityUser    = 300
	PriorityCLI     = 400
)

// SystemProjectUserCLI assembles the canonical four-layer stack
// (system, project, user, command line). Nil maps yield empty layers.
func SystemProjectUserCLI(system, project, user, cli map[string]any) (*Stack, error) {
	return NewStack(
		NewLayer("cli", PriorityCLI, cli, WithLayerLabel("Command Line")),
		NewLayer("user", PriorityUser, user, WithLayerLabel("User")),
		NewLayer("project", PriorityProject, project, WithLayerLabel("Project")),
		NewLayer("system", PrioritySystem, system, WithLayerLabel("System Defaults")),
	)
}
