package tool

import "time"

// RegisterBuiltins installs the stock read-only tools. Anything beyond
// these comes from the tools section of the config file.
func RegisterBuiltins(r *Registry, timeout time.Duration, outputLimit int) error {
	lsArgs := []Arg{
		NewArg("path").WithDescription("Directory to list. Defaults to the current directory."),
	}
	catArgs := []Arg{
		NewArg("path").WithDescription("File to print.").AsRequired(),
	}
	specs := []Spec{
		{
			Name:        "ls",
			Description: "List the contents of a directory.",
			Enabled:     true,
			Args:        lsArgs,
			Exec:        &CommandExecutor{Path: "ls", Args: lsArgs, Timeout: timeout, OutputLimit: outputLimit},
		},
		{
			Name:        "cat",
			Description: "Print the contents of a file.",
			Enabled:     true,
			Args:        catArgs,
			Exec:        &CommandExecutor{Path: "cat", Args: catArgs, Timeout: timeout, OutputLimit: outputLimit},
		},
		{
			Name:        "date",
			Description: "Print the current date and time.",
			Enabled:     true,
			Exec:        &CommandExecutor{Path: "date", Timeout: timeout, OutputLimit: outputLimit},
		},
	}
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}
