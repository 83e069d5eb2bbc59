package commands

const (
	_etc = "/usr/local/etc/gcp-to-groups"
	_var = "/usr/local/var/gcp-to-groups"

	DEFAULT_WORKDIR     = _var
	DEFAULT_CREDENTIALS = _etc + "/.google/credentials.json"
)
