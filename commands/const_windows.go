package commands

const (
	_etc = `C:\ProgramData\gcp-to-groups`
	_var = `C:\ProgramData\gcp-to-groups\var`

	DEFAULT_WORKDIR     = _var
	DEFAULT_CREDENTIALS = _etc + `\.google\credentials.json`
)
