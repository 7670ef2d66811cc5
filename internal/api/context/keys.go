package context

type Key string

const (
	Credential Key = "credential"
	Workspace  Key = "workspace"
	Params     Key = "params"
)
