package commands

const (
	_etc = "/usr/local/etc/com.github.gcp-to-groups"
	_var = "/usr/local/var/com.github.gcp-to-groups"

	DEFAULT_WORKDIR     = _var
	DEFAULT_CREDENTIALS = _etc + "/.google/credentials.json"
)
