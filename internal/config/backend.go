package config

// ConfigBackend is the platform-native settings store behind the config
// keys. macOS keeps values in the com.schreibcoach.app defaults domain;
// other platforms use a JSON file under XDG_CONFIG_HOME. Secrets never go
// through this interface.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
