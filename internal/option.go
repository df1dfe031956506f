package internal

import "github.com/spf13/afero"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	fs     afero.Fs
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithFS sets the filesystem holding the links file and the logo.
// Defaults to the OS filesystem.
func WithFS(fsys afero.Fs) Option {
	return func(a *application) {
		a.fs = fsys
	}
}
