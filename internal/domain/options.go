package domain

// CommonOptions contains shared options for commands and orchestration.
type CommonOptions struct {
	Verbose bool
	NoCache bool
	Force   bool
}
